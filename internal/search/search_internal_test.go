package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/north-cloud/leakscan/internal/logger"
)

var errStop = errors.New("stop requested")

func TestCollector_ClampAndDedup(t *testing.T) {
	t.Parallel()

	col := newCollector()

	long := strings.Repeat("a", 200)
	if !col.add(long, "dump.txt", 1) {
		t.Fatal("first add should be new")
	}
	if got := col.hits[0].Line; len(got) != maxLineLength || !strings.HasSuffix(got, "...") {
		t.Errorf("expected clamped line ending in ..., got %d chars", len(got))
	}

	// Same long line dedups on the clamped form.
	if col.add(long, "other.txt", 2) {
		t.Error("duplicate clamped line should be rejected")
	}

	if !col.add("  acme.com:admin:pw  ", "dump.txt", 1) {
		t.Fatal("trimmed line should be new")
	}
	hit := col.hits[1]
	if hit.Line != "acme.com:admin:pw" {
		t.Errorf("expected trimmed line, got %q", hit.Line)
	}
	if !hit.Important {
		t.Error("lines mentioning admin are important")
	}
}

func TestClampRunes_MultiByte(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ü", 200)
	got := clampRunes(long, maxLineLength)

	if !utf8.ValidString(got) {
		t.Fatalf("clamp produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxLineLength {
		t.Errorf("expected %d runes, got %d", maxLineLength, n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ... suffix, got %q", got)
	}

	short := "пароль"
	if clamped := clampRunes(short, maxLineLength); clamped != short {
		t.Errorf("short string must pass through, got %q", clamped)
	}
}

func TestExtractMatchingLines(t *testing.T) {
	t.Parallel()

	col := newCollector()
	content := "acme.com:u:p\nother.net:x:y\nACME.com:admin:z\n"

	matches, err := extractMatchingLines(col, content, "acme", "leak.txt", 3, nil)
	if err != nil {
		t.Fatalf("extractMatchingLines() error = %v", err)
	}
	if matches != 2 {
		t.Fatalf("expected 2 matches, got %d", matches)
	}
	for _, h := range col.hits {
		if h.FileName != "leak.txt" || h.FileIdx != 3 {
			t.Errorf("hit missing file attribution: %+v", h)
		}
	}
}

func TestExtractMatchingLines_StopAborts(t *testing.T) {
	t.Parallel()

	col := newCollector()

	// A one-shot stop: the error must come back from the first firing, not
	// from a later re-check.
	fired := false
	stop := func(string) error {
		if fired {
			return nil
		}
		fired = true
		return errStop
	}

	_, err := extractMatchingLines(col, "a\nb\n", "", "f", 1, stop)
	if !errors.Is(err, errStop) {
		t.Fatalf("expected stop error, got %v", err)
	}
}

// countingRecorder tallies request outcomes.
type countingRecorder struct {
	outcomes map[string]int
}

func (r *countingRecorder) RecordSearchRequest(outcome string) {
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func TestIntelXClient_RecordsRequestOutcomes(t *testing.T) {
	t.Parallel()

	var status int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"id":"search-1"}`))
	}))
	defer server.Close()

	rec := &countingRecorder{}
	client := NewIntelXClient("key", logger.NewNoOp(),
		WithBaseURL(server.URL),
		WithRecorder(rec),
	)

	status = http.StatusOK
	if _, err := client.submitSearch(context.Background(), "acme.co.id", 10, "", ""); err != nil {
		t.Fatalf("submitSearch() error = %v", err)
	}
	if rec.outcomes["success"] != 1 {
		t.Errorf("expected 1 success, got %+v", rec.outcomes)
	}

	status = http.StatusForbidden
	if _, err := client.submitSearch(context.Background(), "acme.co.id", 10, "", ""); err == nil {
		t.Fatal("expected error on 403")
	}
	if rec.outcomes["error"] != 1 {
		t.Errorf("expected 1 error, got %+v", rec.outcomes)
	}
}

func TestFilterByDate(t *testing.T) {
	t.Parallel()

	records := []record{
		{Name: "in", Date: "2026-08-27 10:00:00"},
		{Name: "out", Date: "2026-08-20 10:00:00"},
		{Name: "undated", Date: ""},
	}

	kept := filterByDate(records, "2026-08-27 00:00:00", "2026-08-27 23:59:59")
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept records, got %d", len(kept))
	}
	if kept[0].Name != "in" || kept[1].Name != "undated" {
		t.Errorf("unexpected records kept: %+v", kept)
	}
}
