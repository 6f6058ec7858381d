package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{name: "zero", seconds: 0, want: "00:00"},
		{name: "fraction truncated", seconds: 59.9, want: "00:59"},
		{name: "minutes", seconds: 150, want: "02:30"},
		{name: "just under an hour", seconds: 3599, want: "59:59"},
		{name: "one hour", seconds: 3600, want: "01:00:00"},
		{name: "hours", seconds: 5445, want: "01:30:45"},
		{name: "negative clamps", seconds: -5, want: "00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.seconds))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "42", want: 42},
		{in: "02:30", want: 150},
		{in: "[02:30]", want: 150},
		{in: "01:30:45", want: 5445},
		{in: " 00:01.5 ", want: 1.5},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "[]", "aa:bb", "1:2:3:4", "-1:00", "01:-5"} {
		_, err := Parse(in)
		assert.Error(t, err, "Parse(%q)", in)
	}
}

func TestParse_RoundTripsFormat(t *testing.T) {
	for _, s := range []float64{0, 59, 61, 3599, 3600, 7261, 36000} {
		got, err := Parse(Format(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0 seconds"},
		{1, "1 second"},
		{60, "1 minute"},
		{61, "1 minute 1 second"},
		{3600, "1 hour"},
		{7325, "2 hours 2 minutes 5 seconds"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Humanize(tc.seconds))
	}
}
