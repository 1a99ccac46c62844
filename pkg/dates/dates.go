// Package dates handles the calendar-day values stored on loans.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the wire format for date-only values.
const DayLayout = "2006-01-02"

var layouts = []string{DayLayout, time.RFC3339Nano, "2006-01-02T15:04:05"}

// Day truncates t to midnight UTC of its own calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the UTC calendar day containing the instant now, whatever
// location now carries.
func Today(now time.Time) time.Time {
	return Day(now.UTC())
}

// Parse accepts a date ("2025-09-18") or a date-time and returns its day.
func Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", raw)
}
