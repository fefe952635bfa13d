// Package parser extracts structured url/username/password credentials from
// unstructured leak text using an ordered cascade of heuristic patterns.
package parser

import (
	"strings"

	"github.com/north-cloud/leakscan/internal/domain"
)

// StopFunc is a cooperative stop checkpoint. It is invoked once per line
// with the current phase name; a non-nil return abandons the batch and is
// surfaced unchanged to the caller.
type StopFunc func(phase string) error

// UnparsedLine is a raw line no pattern accepted, kept for export.
type UnparsedLine struct {
	LineNum int
	Raw     string
}

// Session holds the per-batch state of one parse run: pattern-hit counters
// and the duplicate-suppression set. Sessions are not safe for concurrent
// use; create one per batch.
type Session struct {
	parsed   []domain.ParsedCredential
	unparsed []UnparsedLine
	seen     map[string]bool
	hits     map[int]int
	skipped  int
}

// NewSession creates an empty parse session.
func NewSession() *Session {
	return &Session{
		seen: make(map[string]bool),
		hits: make(map[int]int),
	}
}

// ParseLine runs one line through the pattern cascade. It returns the
// extracted credential and true on a match. Pre-filters reject empty and
// comment lines and known noise markers. ParseLine alone does not touch
// the session's duplicate set or counters.
func ParseLine(line string) (*domain.ParsedCredential, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, false
	}

	lower := strings.ToLower(line)
	if strings.Contains(lower, "company/") ||
		strings.Contains(lower, "public company") ||
		strings.Contains(lower, "e-learning providers") {
		return nil, false
	}

	line = leadingIndexPrefixRe.ReplaceAllString(line, "")

	for _, m := range cascade {
		cred, reject := m.apply(line)
		if reject {
			return nil, false
		}
		if cred != nil {
			return cred, true
		}
	}
	return nil, false
}

// ParseLines parses a batch of raw lines with duplicate suppression on the
// url:username:password triple. A stop checkpoint runs before each line;
// its error abandons the batch and propagates to the caller.
func (s *Session) ParseLines(lines []string, stop StopFunc) error {
	for i, line := range lines {
		if stop != nil {
			if err := stop("parsing"); err != nil {
				return err
			}
		}

		lineNum := i + 1
		cred, ok := ParseLine(line)
		if !ok {
			s.unparsed = append(s.unparsed, UnparsedLine{LineNum: lineNum, Raw: line})
			continue
		}

		// Hits count every successful match; duplicate suppression below
		// only affects emission.
		s.hits[cred.PatternID]++

		key := cred.Key()
		if s.seen[key] {
			s.skipped++
			continue
		}
		s.seen[key] = true

		cred.LineNum = lineNum
		s.parsed = append(s.parsed, *cred)
	}
	return nil
}

// Parsed returns the unique credentials parsed so far, in input order.
func (s *Session) Parsed() []domain.ParsedCredential {
	return s.parsed
}

// Unparsed returns the lines no pattern accepted, in input order.
func (s *Session) Unparsed() []UnparsedLine {
	return s.unparsed
}

// PatternHits returns the per-pattern match counters for the batch.
func (s *Session) PatternHits() map[int]int {
	out := make(map[int]int, len(s.hits))
	for id, n := range s.hits {
		out[id] = n
	}
	return out
}

// DuplicatesSkipped reports how many lines re-produced an already-seen
// triple within this batch.
func (s *Session) DuplicatesSkipped() int {
	return s.skipped
}
