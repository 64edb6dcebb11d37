package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestInitLogger_JSONWithClient(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		Logger = prev
		slog.SetDefault(prev)
	})

	var buf bytes.Buffer
	initLogger(&buf, "info", "json")

	WithClient("abc").Info("client connected")
	Logger.Debug("filtered out")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "client connected", entry["msg"])
	assert.Equal(t, "abc", entry["client_id"])
}

func TestInitLogger_TextFormat(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		Logger = prev
		slog.SetDefault(prev)
	})

	var buf bytes.Buffer
	initLogger(&buf, "debug", "text")

	WithSensor("sensor-temp-1").Debug("tick")

	assert.Contains(t, buf.String(), "sensor_id=sensor-temp-1")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
