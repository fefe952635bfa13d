package search

import (
	"strconv"
	"strings"
	"time"
)

// Days per time-filter unit.
const (
	daysPerWeek  = 7
	daysPerMonth = 30
	daysPerYear  = 365
)

// dateLayout is the boundary format the provider expects.
const dateLayout = "2006-01-02"

// ParseTimeFilter converts a D/W/M/Y window code into a day count. The unit
// letter may be followed by a count ("D7", "W2"); a bare letter means one
// unit. Anything unparseable falls back to one unit of the recognized letter,
// or one day when even the letter is unknown.
func ParseTimeFilter(arg string) int {
	if arg == "" {
		return 1
	}

	arg = strings.ToUpper(strings.TrimSpace(arg))
	if arg == "" {
		return 1
	}

	unit := 1
	switch arg[0] {
	case 'D':
		unit = 1
	case 'W':
		unit = daysPerWeek
	case 'M':
		unit = daysPerMonth
	case 'Y':
		unit = daysPerYear
	default:
		return 1
	}

	if len(arg) == 1 {
		return unit
	}

	n, err := strconv.Atoi(arg[1:])
	if err != nil || n < 1 {
		return unit
	}
	return n * unit
}

// DateRange returns the inclusive search window for a scan reaching back
// daysAgo days: from N days ago at 00:00:00 through yesterday at 23:59:59.
// For a single day the window covers just yesterday.
func DateRange(daysAgo int, now time.Time) (from, to string) {
	if daysAgo < 1 {
		daysAgo = 1
	}

	fromDay := now.AddDate(0, 0, -daysAgo)
	toDay := now.AddDate(0, 0, -1)

	from = fromDay.Format(dateLayout) + " 00:00:00"
	to = toDay.Format(dateLayout) + " 23:59:59"
	return from, to
}
