package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		spec string
		want time.Duration
	}{
		{"5s", 5 * time.Second},
		{"30m", 30 * time.Minute},
		{"1h", time.Hour},
		{"1d", 24 * time.Hour},
		{"2d", 48 * time.Hour},
		{"1x", time.Hour},  // unknown unit
		{"", time.Hour},    // empty
		{"h", time.Hour},   // no value
		{"-5s", time.Hour}, // negative
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseWindow(tc.spec), "spec %q", tc.spec)
	}
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
