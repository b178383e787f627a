package wire

import "time"

// Accepted timestamp layouts for endpoint activation and expiration
// dates. Responses always use RFC 3339; requests from older publishers
// may carry a bare date.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTime renders an optional timestamp in RFC 3339, "" when unset
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses an optional wire timestamp, nil when empty or
// unparseable. A bad date is dropped rather than rejected; the field is
// informational and older publishers disagree on its format.
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
