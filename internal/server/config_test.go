package server

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":3000", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "MAX_MESSAGE_SIZE", "SEND_BUFFER_SIZE",
		"RATE_LIMIT_BURST", "RATE_LIMIT_REFILL_INTERVAL", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Port)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000,https://example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("SEND_BUFFER_SIZE", "16")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "500ms")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000", "https://example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 16, cfg.SendBufferSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigInvalidValue(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "huge")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestSanitizeConfig(t *testing.T) {
	cfg := sanitizeConfig(Config{
		Port:            " 9000 ",
		MaxMessageSize:  -1,
		SendBufferSize:  0,
		ShutdownTimeout: -time.Second,
		RateLimit:       RateLimitConfig{Burst: -3, RefillInterval: 0},
	})

	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, defaultSendBufferSize, cfg.SendBufferSize)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, defaultRateBurst, cfg.RateLimit.Burst)
	assert.Equal(t, defaultRefillInterval, cfg.RateLimit.RefillInterval)
}

func TestSanitizeConfigCopiesOrigins(t *testing.T) {
	origins := []string{"http://a.example"}
	cfg := sanitizeConfig(Config{AllowedOrigins: origins})

	origins[0] = "http://b.example"
	assert.Equal(t, []string{"http://a.example"}, cfg.AllowedOrigins)
}

func TestNormalizePort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ":3000"},
		{in: "  ", want: ":3000"},
		{in: "8080", want: ":8080"},
		{in: ":8080", want: ":8080"},
		{in: "127.0.0.1:9000", want: "127.0.0.1:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePort(tt.in))
		})
	}
}
