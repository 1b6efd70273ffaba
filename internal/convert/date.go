package convert

import "time"

const (
	// DateLayout is the backend's calendar date format.
	DateLayout = "2006-01-02"

	// DateTimeLayout is ISO-8601 in UTC with millisecond precision.
	DateTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var parseLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	DateLayout,
}

// ParseISODate parses an ISO-8601 date or date-time. It returns nil for
// anything that is not a non-empty string holding a valid date.
func ParseISODate(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// FormatDateToISO renders t as "YYYY-MM-DD" in t's own location.
func FormatDateToISO(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDateTimeToISO renders t as a full UTC ISO-8601 timestamp with
// milliseconds, e.g. "2030-01-01T00:00:00.000Z".
func FormatDateTimeToISO(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}
