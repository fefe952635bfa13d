package search_test

import (
	"testing"
	"time"

	"github.com/north-cloud/leakscan/internal/search"
)

func TestParseTimeFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arg  string
		want int
	}{
		{"", 1},
		{"D1", 1},
		{"D7", 7},
		{"d3", 3},
		{"D", 1},
		{"W1", 7},
		{"W2", 14},
		{"W", 7},
		{"M1", 30},
		{"M3", 90},
		{"Y1", 365},
		{"Y2", 730},
		{"Dx", 1},   // bad count falls back to one unit
		{"Wxyz", 7}, // bad count falls back to one week
		{"Q5", 1},   // unknown unit falls back to one day
		{"D0", 1},
		{"D-2", 1},
	}

	for _, tt := range tests {
		if got := search.ParseTimeFilter(tt.arg); got != tt.want {
			t.Errorf("ParseTimeFilter(%q) = %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestDateRange_SingleDay(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	from, to := search.DateRange(1, now)

	if from != "2026-08-27 00:00:00" {
		t.Errorf("from = %q", from)
	}
	if to != "2026-08-27 23:59:59" {
		t.Errorf("to = %q", to)
	}
}

func TestDateRange_MultiDay(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	from, to := search.DateRange(7, now)

	if from != "2026-08-21 00:00:00" {
		t.Errorf("from = %q", from)
	}
	if to != "2026-08-27 23:59:59" {
		t.Errorf("to = %q", to)
	}
}
