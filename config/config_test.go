package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "CORS_ALLOWED_ORIGINS", "HISTORY_LIMIT", "JOIN_HISTORY_LIMIT", "OUTBOX_SIZE",
		"RATE_LIMIT_PER_SECOND", "RATE_LIMIT_BURST", "SHUTDOWN_TIMEOUT", "MAX_FRAME_SIZE",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, Default(), FromEnv())
	assert.Zero(t, FromEnv().RateBurst, "post limiting is opt-in")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("HISTORY_LIMIT", "200")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("MAX_FRAME_SIZE", "4096")

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 200, cfg.HistoryLimit)
	assert.Equal(t, 2.5, cfg.RatePerSecond)
	assert.Equal(t, 5, cfg.RateBurst)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, int64(4096), cfg.MaxFrameSize)
}

func TestFromEnv_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(t *testing.T, cfg Config)
	}{
		{"HISTORY_LIMIT", "abc", func(t *testing.T, cfg Config) { assert.Equal(t, 1000, cfg.HistoryLimit) }},
		{"HISTORY_LIMIT", "0", func(t *testing.T, cfg Config) { assert.Equal(t, 1000, cfg.HistoryLimit) }},
		{"OUTBOX_SIZE", "-3", func(t *testing.T, cfg Config) { assert.Equal(t, 256, cfg.OutboxSize) }},
		{"RATE_LIMIT_PER_SECOND", "fast", func(t *testing.T, cfg Config) { assert.Equal(t, 10.0, cfg.RatePerSecond) }},
		{"SHUTDOWN_TIMEOUT", "soon", func(t *testing.T, cfg Config) { assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout) }},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			tt.check(t, FromEnv())
		})
	}
}
