package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLayouts(t *testing.T) {
	want := time.Date(2025, 9, 18, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2025-09-18", "2025-09-18T14:30:00Z", "2025-09-18T14:30:00", " 2025-09-18 "} {
		got, err := Parse(raw)
		require.NoError(t, err, raw)
		require.True(t, want.Equal(got), raw)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-date", "18/09/2025"} {
		_, err := Parse(raw)
		require.Error(t, err, raw)
	}
}

func TestDayTruncates(t *testing.T) {
	got := Day(time.Date(2024, 11, 19, 23, 59, 0, 0, time.UTC))
	require.Equal(t, time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC), got)
}

func TestTodayUsesUTCCalendarDay(t *testing.T) {
	kiritimati := time.FixedZone("UTC+14", 14*60*60)
	// 08:00 on the 20th in UTC+14 is still the 19th in UTC.
	got := Today(time.Date(2024, 11, 20, 8, 0, 0, 0, kiritimati))
	require.Equal(t, time.Date(2024, 11, 19, 0, 0, 0, 0, time.UTC), got)
}
