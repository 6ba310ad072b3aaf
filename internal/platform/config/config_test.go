package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civitas/pkg/domain-errors"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := FromEnv()
		assert.Equal(t, Defaults(), cfg)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("CIVITAS_LOG_LEVEL", "DEBUG")
		t.Setenv("CIVITAS_TRACE_MATCHING", "true")
		t.Setenv("CIVITAS_MATCH_DIGEST", "blake2b")
		t.Setenv("CIVITAS_LOCK_TIMEOUT", "250ms")

		cfg := FromEnv()
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.True(t, cfg.TraceMatching)
		assert.Equal(t, "blake2b", cfg.MatchDigest)
		assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	})

	t.Run("malformed values keep defaults", func(t *testing.T) {
		t.Setenv("CIVITAS_TRACE_MATCHING", "sometimes")
		t.Setenv("CIVITAS_LOCK_TIMEOUT", "soon")

		cfg := FromEnv()
		assert.False(t, cfg.TraceMatching)
		assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("overlays yaml on environment", func(t *testing.T) {
		t.Setenv("CIVITAS_SERVICE_NAME", "from-env")
		path := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_format: text\nlock_timeout: 2s\ntracing_enabled: true\n"), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, 2*time.Second, cfg.LockTimeout)
		assert.True(t, cfg.TracingEnabled)
		assert.Equal(t, "from-env", cfg.ServiceName)
		assert.Equal(t, "sha256", cfg.MatchDigest)
	})

	t.Run("rejects unknown digest", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("match_digest: md5\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "match digest")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("lock_timeout: [\n"), 0o600))

		_, err := Load(path)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"match digest", func(c *Config) { c.MatchDigest = "md5" }, "match digest"},
		{"tracing exporter", func(c *Config) { c.TracingExporter = "jaeger" }, "tracing exporter"},
		{"zero lock timeout", func(c *Config) { c.LockTimeout = 0 }, "lock timeout"},
		{"negative lock timeout", func(c *Config) { c.LockTimeout = -time.Second }, "lock timeout"},
		{"sample rate below zero", func(c *Config) { c.OpsSampleRate = -0.1 }, "sample rate"},
		{"sample rate above one", func(c *Config) { c.OpsSampleRate = 1.5 }, "sample rate"},
		{"sample rate not a number", func(c *Config) { c.OpsSampleRate = math.NaN() }, "sample rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("boundary sample rates pass", func(t *testing.T) {
		for _, rate := range []float64{0, 1} {
			cfg := Defaults()
			cfg.OpsSampleRate = rate
			assert.NoError(t, cfg.Validate())
		}
	})
}
