package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2026-05-01T12:30:00Z", "2026-05-01T12:30:00Z"},
		{"2026-05-01T12:30:00+02:00", "2026-05-01T10:30:00Z"},
		{"2026-05-01T12:30:00", "2026-05-01T12:30:00Z"},
		{"2026-05-01", "2026-05-01T00:00:00Z"},
	}
	for _, tt := range tests {
		got := ParseTime(tt.in)
		require.NotNil(t, got, tt.in)
		assert.Equal(t, tt.want, FormatTime(got), tt.in)
	}
}

func TestParseTimeInvalid(t *testing.T) {
	assert.Nil(t, ParseTime(""))
	assert.Nil(t, ParseTime("not-a-date"))
	assert.Nil(t, ParseTime("01/05/2026"))
}

func TestFormatTimeNil(t *testing.T) {
	assert.Empty(t, FormatTime(nil))

	ts := time.Date(2026, 5, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2026-05-01T10:30:00Z", FormatTime(&ts))
}
