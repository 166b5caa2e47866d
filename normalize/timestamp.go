package normalize

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultSourceTimezone = "Asia/Kolkata"

var (
	offsetLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00"}
	localLayouts  = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		time.DateTime,
	}
)

// ParseTimestamp parses s and returns it in UTC. Values without an offset are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	if strings.Contains(s, "T") {
		for _, layout := range offsetLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}
