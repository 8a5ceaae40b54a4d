package service

import (
	"strings"
	"time"
)

// showTimeLayouts are the formats clients have been seen to send.
var showTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"Jan 2, 2006 3:04 PM",
	"02 Jan 2006 15:04",
}

// parseShowTime interprets a free-form show time. Layouts without an
// offset are read in loc. ok is false when nothing matches.
func parseShowTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range showTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
