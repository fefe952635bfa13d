// Package search provides leak-search providers and result collection.
package search

import (
	"context"
	"strings"
)

// PhaseCollecting is the phase name reported to stop checks during result
// collection.
const PhaseCollecting = "collecting"

// maxLineLength is the clamp applied to collected lines before storage.
const maxLineLength = 150

// StopFunc is a cooperative cancellation checkpoint. Implementations return
// a non-nil error when the caller should stop; the error propagates unwrapped
// so the worker can distinguish cancel from pause.
type StopFunc func(phase string) error

// Hit is one matching line collected from a leak source.
type Hit struct {
	Line      string `json:"line"`
	Important bool   `json:"important"`
	FileName  string `json:"file_name"`
	FileIdx   int    `json:"file_idx"`
}

// Options bound a single search.
type Options struct {
	// MaxResults caps how many records the provider requests.
	MaxResults int
	// TimeFilter is a D/W/M/Y window code, empty for all time.
	TimeFilter string
	// Limit caps how many records have their contents inspected.
	Limit int
}

// Provider searches a leak source for lines mentioning a query.
type Provider interface {
	Search(ctx context.Context, query string, opts Options, stop StopFunc) ([]Hit, error)
}

// collector accumulates hits with cross-file dedup on the clamped line.
type collector struct {
	hits []Hit
	seen map[string]struct{}
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

// add clamps, dedups and records one matching line. Returns whether the line
// was new.
func (c *collector) add(line, fileName string, fileIdx int) bool {
	clean := clampRunes(strings.TrimSpace(line), maxLineLength)

	if _, dup := c.seen[clean]; dup {
		return false
	}
	c.seen[clean] = struct{}{}

	c.hits = append(c.hits, Hit{
		Line:      clean,
		Important: strings.Contains(strings.ToLower(clean), "admin"),
		FileName:  fileName,
		FileIdx:   fileIdx,
	})
	return true
}

// clampRunes truncates s to max runes, marking the cut with "...". Truncation
// lands on rune boundaries so multi-byte text stays valid UTF-8.
func clampRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// Lines returns just the line text of each hit, in collection order.
func Lines(hits []Hit) []string {
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = h.Line
	}
	return lines
}
