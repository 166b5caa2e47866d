package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kolkata(t *testing.T) *time.Location {
	loc, err := time.LoadLocation(DefaultSourceTimezone)
	require.NoError(t, err)
	return loc
}

func TestParseTimestamp(t *testing.T) {
	loc := kolkata(t)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-10-01 10:30:00", time.Date(2025, 10, 1, 5, 0, 0, 0, time.UTC)},
		{"2025-10-01T10:30:00", time.Date(2025, 10, 1, 5, 0, 0, 0, time.UTC)},
		{"2025-10-01T10:30", time.Date(2025, 10, 1, 5, 0, 0, 0, time.UTC)},
		{"2025-10-01T10:30:00Z", time.Date(2025, 10, 1, 10, 30, 0, 0, time.UTC)},
		{"2025-10-01T10:30:00+02:00", time.Date(2025, 10, 1, 8, 30, 0, 0, time.UTC)},
		{"2025-10-01T10:30:00.250Z", time.Date(2025, 10, 1, 10, 30, 0, 250_000_000, time.UTC)},
		{"  2025-10-01 00:10:00 ", time.Date(2025, 9, 30, 18, 40, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in, loc)
		require.NoError(t, err, c.in)
		assert.True(t, c.want.Equal(got), "%s: got %s want %s", c.in, got, c.want)
		assert.Equal(t, time.UTC, got.Location(), c.in)
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "yesterday", "01/10/2025 10:30", "2025-13-01 00:00:00"} {
		_, err := ParseTimestamp(in, time.UTC)
		assert.Error(t, err, in)
	}
}
