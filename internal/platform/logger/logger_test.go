package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civitas/internal/platform/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json at configured level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.Defaults()
		cfg.LogLevel = "warn"
		log := NewWithWriter(cfg, &buf)

		log.Info("dropped")
		log.Warn("kept", "ward_id", "w-1")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "kept", line["msg"])
		assert.Equal(t, "w-1", line["ward_id"])
		assert.Equal(t, "civitas", line["service"])
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.Defaults()
		cfg.LogFormat = "text"
		NewWithWriter(cfg, &buf).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Level("debug"))
	assert.Equal(t, slog.LevelError, Level("error"))
	assert.Equal(t, slog.LevelInfo, Level("verbose"))
}
