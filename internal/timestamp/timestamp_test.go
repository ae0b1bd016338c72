package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestParse_DisplayShape(t *testing.T) {
	n := New(time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"with seconds pm", "15-10-2026, 03:04:05 PM", time.Date(2026, 10, 15, 15, 4, 5, 0, time.UTC)},
		{"without seconds", "15-10-2026, 03:04 PM", time.Date(2026, 10, 15, 15, 4, 0, 0, time.UTC)},
		{"noon stays noon", "01-01-2025, 12:00:00 PM", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"midnight", "01-01-2025, 12:30:00 AM", time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)},
		{"single digit hour lowercase", "02-03-2024, 9:15 am", time.Date(2024, 3, 2, 9, 15, 0, 0, time.UTC)},
		{"no space before meridiem", "02-03-2024, 11:15:59PM", time.Date(2024, 3, 2, 23, 15, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Parse(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParse_ISOShape(t *testing.T) {
	n := New(time.UTC)

	got, ok := n.Parse("2026-10-15T08:30:00.000Z")
	require.True(t, ok)
	assert.True(t, time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC).Equal(got))

	got, ok = n.Parse("2026-10-15T08:30:00+06:00")
	require.True(t, ok)
	assert.True(t, time.Date(2026, 10, 15, 2, 30, 0, 0, time.UTC).Equal(got))

	dhaka := New(mustLoad(t, "Asia/Dhaka"))
	got, ok = dhaka.Parse("2026-10-15T08:30")
	require.True(t, ok)
	assert.True(t, time.Date(2026, 10, 15, 2, 30, 0, 0, time.UTC).Equal(got))
}

func TestParse_Unparseable(t *testing.T) {
	n := New(time.UTC)
	for _, in := range []string{"", "   ", "yesterday", "2026/10/15 08:30", "15-10-2026 03:04 PM", "Tuesday"} {
		_, ok := n.Parse(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestFormat(t *testing.T) {
	n := New(time.UTC)

	assert.Equal(t, "05-01-2026, 09:07:03 AM", n.Format(time.Date(2026, 1, 5, 9, 7, 3, 0, time.UTC)))
	assert.Equal(t, "05-01-2026, 12:00:00 AM", n.Format(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "05-01-2026, 12:59:59 PM", n.Format(time.Date(2026, 1, 5, 12, 59, 59, 0, time.UTC)))
	assert.Equal(t, "05-01-2026, 11:00:00 PM", n.Format(time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)))

	dhaka := New(mustLoad(t, "Asia/Dhaka"))
	assert.Equal(t, "05-01-2026, 06:00:00 AM", dhaka.Format(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))
}

func TestRoundTrip(t *testing.T) {
	for _, loc := range []*time.Location{time.UTC, mustLoad(t, "Asia/Dhaka"), mustLoad(t, "America/New_York")} {
		n := New(loc)
		start := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 96; i++ {
			in := start.Add(time.Duration(i) * 37 * time.Minute).Add(time.Duration(i) * time.Second)
			got, ok := n.Parse(n.Format(in))
			require.True(t, ok)
			assert.True(t, in.Equal(got), "%s: %s != %s", loc, got, in)
		}
	}

	n := New(time.UTC)
	for _, s := range []string{"15-10-2026, 03:04:05 PM", "01-01-2025, 12:00:00 AM", "31-12-1999, 11:59:59 PM"} {
		got, ok := n.Parse(s)
		require.True(t, ok)
		assert.Equal(t, s, n.Format(got))
	}
}

func TestParse_DropsSubSecond(t *testing.T) {
	n := New(time.UTC)
	in := time.Date(2026, 3, 1, 10, 0, 0, 999_000_000, time.UTC)
	got, ok := n.Parse(n.Format(in))
	require.True(t, ok)
	assert.True(t, in.Truncate(time.Second).Equal(got))
}

func TestRoundTrip_RepeatedDSTHour(t *testing.T) {
	n := New(mustLoad(t, "America/New_York"))

	// 01:30 EDT and 01:30 EST on the day clocks go back
	first := time.Date(2025, 11, 2, 5, 30, 0, 0, time.UTC)
	second := time.Date(2025, 11, 2, 6, 30, 0, 0, time.UTC)
	require.Equal(t, n.Format(first), n.Format(second))

	display := n.Format(second)
	assert.Equal(t, "02-11-2025, 01:30:00 AM", display)
	got, ok := n.Parse(display)
	require.True(t, ok)
	assert.True(t, got.Equal(first) || got.Equal(second), "got %s", got)
	assert.Equal(t, display, n.Format(got))

	// an hour later the wall clock is unambiguous again
	later := time.Date(2025, 11, 2, 8, 30, 0, 0, time.UTC)
	got, ok = n.Parse(n.Format(later))
	require.True(t, ok)
	assert.True(t, got.Equal(later))
}
