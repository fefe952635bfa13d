package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/north-cloud/leakscan/internal/logger"
)

// DefaultMultiScanWorkers bounds concurrent per-domain searches.
const DefaultMultiScanWorkers = 20

// MultiResult is the outcome of a multi-domain search.
type MultiResult struct {
	Hits         []Hit
	DomainsFound []string
	Succeeded    int
	Failed       int
}

// MultiScanner fans a domain list out over a bounded pool of searches.
type MultiScanner struct {
	provider Provider
	workers  int
	delay    time.Duration
	logger   logger.Interface
}

// NewMultiScanner creates a multi-domain scanner. workers <= 0 selects the
// default pool size.
func NewMultiScanner(provider Provider, workers int, delay time.Duration, log logger.Interface) *MultiScanner {
	if workers <= 0 {
		workers = DefaultMultiScanWorkers
	}
	return &MultiScanner{
		provider: provider,
		workers:  workers,
		delay:    delay,
		logger:   log.WithComponent("multiscan"),
	}
}

// domainResult carries one domain's outcome back to the collector.
type domainResult struct {
	domain string
	hits   []Hit
	err    error
}

// Search runs the provider against every domain in parallel. A stop error
// from any worker aborts the whole scan and is returned unwrapped. Ordinary
// per-domain failures are counted but do not abort the scan.
func (m *MultiScanner) Search(ctx context.Context, domainList []string, opts Options, stop StopFunc) (MultiResult, error) {
	var res MultiResult

	queued := make([]string, 0, len(domainList))
	for _, d := range domainList {
		if trimmed := strings.TrimSpace(d); trimmed != "" {
			queued = append(queued, trimmed)
		}
	}
	if len(queued) == 0 {
		return res, nil
	}

	m.logger.Info("scanning domains",
		"count", len(queued),
		"workers", m.workers,
		"time_filter", opts.TimeFilter,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan string)
	results := make(chan domainResult)

	var wg sync.WaitGroup
	for range m.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for domain := range tasks {
				if m.delay > 0 {
					select {
					case <-time.After(m.delay):
					case <-ctx.Done():
						results <- domainResult{domain: domain, err: ctx.Err()}
						continue
					}
				}

				hits, err := m.provider.Search(ctx, domain, opts, stop)
				results <- domainResult{domain: domain, hits: hits, err: err}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, domain := range queued {
			select {
			case tasks <- domain:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var stopErr error
	seenDomains := make(map[string]struct{})
	for dr := range results {
		switch {
		case dr.err != nil:
			res.Failed++
			// The stop flags are sticky, so re-checking distinguishes a
			// requested stop from an ordinary provider failure.
			if stopErr == nil && stop != nil {
				if serr := stop(PhaseCollecting); serr != nil {
					stopErr = serr
					cancel()
					continue
				}
			}
			m.logger.Warn("domain scan failed", "domain", dr.domain, "error", dr.err)
		case len(dr.hits) > 0:
			res.Succeeded++
			res.Hits = append(res.Hits, dr.hits...)
			seenDomains[dr.domain] = struct{}{}
		default:
			res.Succeeded++
		}
	}

	if stopErr != nil {
		return MultiResult{}, stopErr
	}

	res.DomainsFound = make([]string, 0, len(seenDomains))
	for d := range seenDomains {
		res.DomainsFound = append(res.DomainsFound, d)
	}
	sort.Strings(res.DomainsFound)

	m.logger.Info("domain scan finished",
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"domains_with_hits", len(res.DomainsFound),
		"hits", len(res.Hits),
	)

	return res, nil
}
