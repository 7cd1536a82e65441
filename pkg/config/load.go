package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GUARDIAN_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, defaults are applied to anything
// left empty and the result is validated. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides named GUARDIAN_SECTION_FIELD (for example
// GUARDIAN_RUNTIME_MODE). An empty path starts from the defaults.
// Environment variables always take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg = Default()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

// envBinder applies typed overrides and collects parse failures.
type envBinder struct {
	lookup lookupFunc
	errs   []FieldError
}

func (b *envBinder) get(name string) (string, bool) {
	val, ok := b.lookup(EnvPrefix + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (b *envBinder) fail(name, val, kind string) {
	b.errs = append(b.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("invalid %s %q", kind, val),
	})
}

func (b *envBinder) str(name string, dst *string) {
	if val, ok := b.get(name); ok {
		*dst = val
	}
}

func (b *envBinder) boolean(name string, dst *bool) {
	if val, ok := b.get(name); ok {
		v, err := strconv.ParseBool(val)
		if err != nil {
			b.fail(name, val, "boolean")
			return
		}
		*dst = v
	}
}

func (b *envBinder) integer(name string, dst *int) {
	if val, ok := b.get(name); ok {
		v, err := strconv.Atoi(val)
		if err != nil {
			b.fail(name, val, "integer")
			return
		}
		*dst = v
	}
}

func (b *envBinder) float(name string, dst *float64) {
	if val, ok := b.get(name); ok {
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			b.fail(name, val, "number")
			return
		}
		*dst = v
	}
}

func (b *envBinder) duration(name string, dst *time.Duration) {
	if val, ok := b.get(name); ok {
		v, err := time.ParseDuration(val)
		if err != nil {
			b.fail(name, val, "duration")
			return
		}
		*dst = v
	}
}

// applyEnvOverrides applies GUARDIAN_* variables to cfg. Malformed values
// are reported together as a ValidationError.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	b := &envBinder{lookup: lookup}

	// Ruleset overrides
	b.str("RULESET_PATH", &cfg.Ruleset.Path)
	b.boolean("RULESET_WATCH", &cfg.Ruleset.Watch)

	// Runtime overrides
	b.str("RUNTIME_MODE", &cfg.Runtime.Mode)
	b.duration("RUNTIME_LATENCY_BUDGET", &cfg.Runtime.LatencyBudget)
	b.duration("RUNTIME_CACHE_TTL", &cfg.Runtime.CacheTTL)
	b.integer("RUNTIME_WORKERS", &cfg.Runtime.Workers)
	b.integer("RUNTIME_QUEUE_SIZE", &cfg.Runtime.QueueSize)

	// Semantic overrides
	b.boolean("SEMANTIC_ENABLED", &cfg.Semantic.Enabled)
	b.float("SEMANTIC_THRESHOLD", &cfg.Semantic.Threshold)
	b.str("SEMANTIC_EMBEDDER", &cfg.Semantic.Embedder)
	b.str("SEMANTIC_OLLAMA_URL", &cfg.Semantic.Ollama.URL)
	b.str("SEMANTIC_OLLAMA_MODEL", &cfg.Semantic.Ollama.Model)
	b.duration("SEMANTIC_OLLAMA_TIMEOUT", &cfg.Semantic.Ollama.Timeout)

	// Audit overrides
	b.str("AUDIT_LOG_PATH", &cfg.Audit.LogPath)
	b.boolean("AUDIT_STORE_TEXT", &cfg.Audit.StoreText)
	b.integer("AUDIT_PREVIEW_LENGTH", &cfg.Audit.PreviewLength)
	b.str("AUDIT_LATENCY_LOG_PATH", &cfg.Audit.LatencyLogPath)
	b.boolean("AUDIT_INDEX_ENABLED", &cfg.Audit.Index.Enabled)
	b.str("AUDIT_INDEX_PATH", &cfg.Audit.Index.Path)

	// Anchor overrides
	b.str("ANCHOR_BACKEND", &cfg.Anchor.Backend)
	b.str("ANCHOR_STATE_PATH", &cfg.Anchor.StatePath)
	b.str("ANCHOR_LEDGER_PATH", &cfg.Anchor.LedgerPath)
	b.str("ANCHOR_SQLITE_PATH", &cfg.Anchor.SQLitePath)
	b.duration("ANCHOR_CONFIRM_TIMEOUT", &cfg.Anchor.ConfirmTimeout)
	b.str("ANCHOR_SCHEDULE", &cfg.Anchor.Schedule)
	b.str("ANCHOR_SINK_URL", &cfg.Anchor.Sink.URL)
	b.duration("ANCHOR_SINK_TIMEOUT", &cfg.Anchor.Sink.Timeout)
	if token, ok := b.get("ANCHOR_SINK_TOKEN"); ok {
		if cfg.Anchor.Sink.Headers == nil {
			cfg.Anchor.Sink.Headers = make(map[string]string)
		}
		cfg.Anchor.Sink.Headers["Authorization"] = "Bearer " + strings.TrimSpace(token)
	}

	// Server overrides
	b.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	b.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	b.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	b.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	b.boolean("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	b.str("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	b.str("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	b.boolean("SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled)
	b.boolean("SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)
	b.float("SERVER_RATE_LIMIT_REQUESTS_PER_SECOND", &cfg.Server.RateLimit.RequestsPerSecond)
	b.integer("SERVER_RATE_LIMIT_BURST", &cfg.Server.RateLimit.Burst)

	// Telemetry overrides
	b.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	b.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	b.boolean("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	b.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	b.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	b.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	b.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	b.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	// Secrets overrides
	b.str("SECRETS_DIR", &cfg.Secrets.Dir)

	// Lint overrides
	b.boolean("LINT_REQUIRE_CONFIDENCE", &cfg.Lint.RequireConfidence)
	b.boolean("LINT_REQUIRE_UNCERTAIN", &cfg.Lint.RequireUncertain)
	b.boolean("LINT_MICROFORMATS", &cfg.Lint.Microformats)

	if len(b.errs) > 0 {
		return ValidationError{Errors: b.errs}
	}
	return nil
}
