package license

import (
	"fmt"
	"time"
)

// displayLayout matches the dd/mm/yyyy HH:MM:SS format clients render in
// their activation dialogs.
const displayLayout = "02/01/2006 15:04:05"

// FormatInstant renders a timestamp as ISO-8601 with an explicit offset.
// All authoritative times are UTC instants; this is the one wire format.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseInstant parses an ISO-8601 timestamp into a UTC instant.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDisplay renders a timestamp for human display in the given zone.
// Presentation only; never parsed back.
func FormatDisplay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayLayout)
}
