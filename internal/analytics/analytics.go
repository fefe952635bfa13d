// Package analytics aggregates persisted credentials into dashboard views.
// Credentials are stored with their normalized hostname; this layer collapses
// hostnames to their organizational root so that mail.acme.co.id and
// shop.acme.co.id report under acme.co.id.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/north-cloud/leakscan/internal/database"
	"github.com/north-cloud/leakscan/internal/domain"
	"github.com/north-cloud/leakscan/internal/domains"
	"github.com/north-cloud/leakscan/internal/logger"
)

const (
	// DefaultTopLimit is the default item count for top-N views.
	DefaultTopLimit = 10

	// DefaultTimelineDays is the default window for the discovery timeline.
	DefaultTimelineDays = 30

	recentWindow = 24 * time.Hour
)

// ErrInvalidDomain is returned when a requested domain has no recognizable
// organizational root.
var ErrInvalidDomain = errors.New("invalid root domain")

// Repository is the slice of the database layer the analytics service reads.
type Repository interface {
	Totals(ctx context.Context) (total, admins int, err error)
	DomainCounts(ctx context.Context) ([]database.DomainCount, error)
	TopPasswords(ctx context.Context, limit int) ([]database.PasswordCount, error)
	Timeline(ctx context.Context, days int) ([]database.TimelinePoint, error)
	ListByDomains(ctx context.Context, hostnames []string, limit, offset int) ([]*domain.Credential, error)
	JobStatusCounts(ctx context.Context) (map[string]int, error)
	JobsCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// Service computes dashboard aggregates from stored credentials and jobs.
type Service struct {
	repo   Repository
	logger logger.Interface
}

// NewService creates a new analytics service.
func NewService(repo Repository, log logger.Interface) *Service {
	return &Service{
		repo:   repo,
		logger: log.WithComponent("analytics"),
	}
}

// DashboardStats is the headline view of the credential store.
type DashboardStats struct {
	TotalCredentials int            `json:"total_credentials"`
	AdminCredentials int            `json:"admin_credentials"`
	RootDomains      int            `json:"root_domains"`
	TotalScans       int            `json:"total_scans"`
	ScansLast24h     int            `json:"scans_last_24h"`
	JobsByStatus     map[string]int `json:"jobs_by_status"`
}

// RootDomain is a per-root aggregate over all hostnames that collapse to it.
type RootDomain struct {
	Domain      string    `json:"domain"`
	Credentials int       `json:"credentials"`
	Admins      int       `json:"admins"`
	Hostnames   int       `json:"hostnames"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// RootDomainDetails is a root aggregate plus the credentials under it.
type RootDomainDetails struct {
	RootDomain
	Results []*domain.Credential `json:"results"`
}

// Dashboard returns the headline statistics.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	total, admins, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential totals: %w", err)
	}

	roots, err := s.rootAggregates(ctx)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.repo.JobStatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load job status counts: %w", err)
	}

	totalScans := 0
	for _, count := range byStatus {
		totalScans += count
	}

	recent, err := s.repo.JobsCreatedSince(ctx, time.Now().Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent scans: %w", err)
	}

	return &DashboardStats{
		TotalCredentials: total,
		AdminCredentials: admins,
		RootDomains:      len(roots),
		TotalScans:       totalScans,
		ScansLast24h:     recent,
		JobsByStatus:     byStatus,
	}, nil
}

// TopRootDomains returns the largest root domains by credential count.
// Hostnames that do not collapse to a valid root are excluded.
func (s *Service) TopRootDomains(ctx context.Context, limit int) ([]RootDomain, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	roots, err := s.rootAggregates(ctx)
	if err != nil {
		return nil, err
	}

	sorted := make([]RootDomain, 0, len(roots))
	for _, root := range roots {
		sorted = append(sorted, *root)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Credentials != sorted[j].Credentials {
			return sorted[i].Credentials > sorted[j].Credentials
		}
		return sorted[i].Domain < sorted[j].Domain
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	return sorted, nil
}

// TopPasswords returns the most frequently seen passwords.
func (s *Service) TopPasswords(ctx context.Context, limit int) ([]database.PasswordCount, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	return s.repo.TopPasswords(ctx, limit)
}

// Timeline returns daily new-credential counts for the last N days.
func (s *Service) Timeline(ctx context.Context, days int) ([]database.TimelinePoint, error) {
	if days <= 0 {
		days = DefaultTimelineDays
	}
	return s.repo.Timeline(ctx, days)
}

// RootDomainDetails returns the aggregate for one root domain together with
// the credentials stored under any of its hostnames, most recent first.
func (s *Service) RootDomainDetails(ctx context.Context, root string, limit, offset int) (*RootDomainDetails, error) {
	normalized := domains.Root(root)
	if normalized == domains.Other {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, root)
	}

	counts, err := s.repo.DomainCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate domains: %w", err)
	}

	agg := RootDomain{Domain: normalized}
	var hostnames []string
	for _, dc := range counts {
		if domains.Root(dc.Domain) != normalized {
			continue
		}
		hostnames = append(hostnames, dc.Domain)
		mergeCount(&agg, dc)
	}

	if len(hostnames) == 0 {
		return &RootDomainDetails{
			RootDomain: agg,
			Results:    []*domain.Credential{},
		}, nil
	}

	creds, err := s.repo.ListByDomains(ctx, hostnames, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials for %s: %w", normalized, err)
	}

	return &RootDomainDetails{
		RootDomain: agg,
		Results:    creds,
	}, nil
}

// rootAggregates groups per-hostname counts by organizational root.
func (s *Service) rootAggregates(ctx context.Context) (map[string]*RootDomain, error) {
	counts, err := s.repo.DomainCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate domains: %w", err)
	}

	roots := make(map[string]*RootDomain)
	for _, dc := range counts {
		root := domains.Root(dc.Domain)
		if root == domains.Other {
			continue
		}

		agg, ok := roots[root]
		if !ok {
			agg = &RootDomain{Domain: root}
			roots[root] = agg
		}
		mergeCount(agg, dc)
	}

	return roots, nil
}

func mergeCount(agg *RootDomain, dc database.DomainCount) {
	agg.Credentials += dc.Count
	agg.Admins += dc.Admins
	agg.Hostnames++
	if agg.FirstSeen.IsZero() || dc.FirstSeen.Before(agg.FirstSeen) {
		agg.FirstSeen = dc.FirstSeen
	}
	if dc.LastSeen.After(agg.LastSeen) {
		agg.LastSeen = dc.LastSeen
	}
}
