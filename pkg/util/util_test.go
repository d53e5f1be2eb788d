package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"45", 45 * time.Second},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDuration("xd")
	assert.Error(t, err)
	assert.Equal(t, time.Hour, DurationOr("nope", time.Hour))
}

func TestParseSize(t *testing.T) {
	assert.Equal(t, int64(512*1024*1024), ParseSize("512MB", 0))
	assert.Equal(t, int64(2*1024*1024*1024), ParseSize("2gb", 0))
	assert.Equal(t, int64(1024), ParseSize("1024B", 0))
	assert.Equal(t, int64(99), ParseSize("-1KB", 99))
	assert.Equal(t, int64(99), ParseSize("", 99))
	assert.Equal(t, "1.50 KB", FormatSize(1536))
	assert.Equal(t, "12 B", FormatSize(12))
}

func TestGetLastDayOfMonth(t *testing.T) {
	assert.Equal(t, 29, GetLastDayOfMonth(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 28, GetLastDayOfMonth(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 31, GetLastDayOfMonth(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))
}
