package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISODate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *time.Time
	}{
		{"nil", nil, nil},
		{"number", 42, nil},
		{"empty", "", nil},
		{"garbage", "not a date", nil},
		{"bad month", "2024-13-01", nil},
		{"date only", "2030-01-01", ptr(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"rfc3339", "2024-01-01T00:00:00Z", ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
		{"millis", "2024-05-06T07:08:09.123Z", ptr(time.Date(2024, 5, 6, 7, 8, 9, 123e6, time.UTC))},
		{"no zone", "2024-05-06T07:08:09", ptr(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseISODate(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "want %v, got %v", tc.want, got)
		})
	}
}

func TestFormatDates(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	d := time.Date(2030, 1, 1, 2, 30, 0, 5e6, loc)

	assert.Equal(t, "2030-01-01", FormatDateToISO(d))
	assert.Equal(t, "2029-12-31T23:30:00.005Z", FormatDateTimeToISO(d))
	assert.Equal(t, "2030-01-01T00:00:00.000Z", FormatDateTimeToISO(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func ptr(t time.Time) *time.Time { return &t }
