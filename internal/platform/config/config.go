package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dErrors "civitas/pkg/domain-errors"
)

// Config carries the ambient settings shared by every service in the module.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// TraceMatching turns on DEBUG logs for validity and match checks.
	TraceMatching bool `yaml:"trace_matching"`

	TracingEnabled  bool   `yaml:"tracing_enabled"`
	TracingExporter string `yaml:"tracing_exporter"`
	ServiceName     string `yaml:"service_name"`

	MetricsNamespace string `yaml:"metrics_namespace"`

	// MatchDigest selects the hash behind essential-content hashes and match
	// codes: "sha256" or "blake2b".
	MatchDigest string `yaml:"match_digest"`

	// LockTimeout bounds guardianship lock acquisition when the caller's
	// context carries no deadline.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// OpsSampleRate is the fraction of operational audit events kept.
	OpsSampleRate float64 `yaml:"ops_sample_rate"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		LogLevel:         "info",
		LogFormat:        "json",
		TracingExporter:  "none",
		ServiceName:      "civitas",
		MetricsNamespace: "civitas",
		MatchDigest:      "sha256",
		LockTimeout:      5 * time.Second,
		OpsSampleRate:    1,
	}
}

// FromEnv builds a Config from CIVITAS_* environment variables over Defaults.
// Malformed numeric or boolean values keep the default.
func FromEnv() Config {
	cfg := Defaults()
	if v := env("CIVITAS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := env("CIVITAS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v, ok := envBool("CIVITAS_TRACE_MATCHING"); ok {
		cfg.TraceMatching = v
	}
	if v, ok := envBool("CIVITAS_TRACING_ENABLED"); ok {
		cfg.TracingEnabled = v
	}
	if v := env("CIVITAS_TRACING_EXPORTER"); v != "" {
		cfg.TracingExporter = strings.ToLower(v)
	}
	if v := env("CIVITAS_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := env("CIVITAS_METRICS_NAMESPACE"); v != "" {
		cfg.MetricsNamespace = v
	}
	if v := env("CIVITAS_MATCH_DIGEST"); v != "" {
		cfg.MatchDigest = strings.ToLower(v)
	}
	if v := env("CIVITAS_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}
	if v := env("CIVITAS_OPS_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.OpsSampleRate = f
		}
	}
	return cfg
}

// Load reads FromEnv and overlays the YAML file at path. Keys absent from the
// file keep their environment or default value.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "config file unreadable: "+path).In("Config", "Load")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "config file is not valid yaml: "+path).In("Config", "Load")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can act on with invalid_input.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return invalid("unknown log format %q", c.LogFormat)
	}
	switch c.MatchDigest {
	case "sha256", "blake2b":
	default:
		return invalid("unknown match digest %q", c.MatchDigest)
	}
	switch c.TracingExporter {
	case "none", "stdout":
	default:
		return invalid("unknown tracing exporter %q", c.TracingExporter)
	}
	if c.LockTimeout <= 0 {
		return invalid("lock timeout must be positive, got %s", c.LockTimeout)
	}
	if math.IsNaN(c.OpsSampleRate) || c.OpsSampleRate < 0 || c.OpsSampleRate > 1 {
		return invalid("ops sample rate must be within [0,1], got %v", c.OpsSampleRate)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeInvalidInput, format, args...).In("Config", "Validate")
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envBool(key string) (bool, bool) {
	v := env(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
