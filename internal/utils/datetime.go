package utils

import (
	"fmt"
	"strings"
	"time"
)

// DBTimeLayout is how DATETIME columns are rendered.
const DBTimeLayout = "2006-01-02 15:04:05"

// accepted input layouts, most specific first
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DBTimeLayout,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDatetime parses an ISO 8601 style timestamp.  Values carrying an
// offset are converted to UTC; values without one are taken as UTC wall
// clock, matching the timezone-naive DATETIME columns.  Fractional seconds
// are truncated since the columns store whole seconds.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q", s)
}
