package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "runtime.mode").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All validation errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRuleset(&cfg.Ruleset)...)
	errs = append(errs, validateRuntime(&cfg.Runtime)...)
	errs = append(errs, validateSemantic(&cfg.Semantic)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateAnchor(&cfg.Anchor)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRuleset(cfg *RulesetConfig) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(cfg.Path) == "" {
		errs = append(errs, FieldError{
			Field:   "ruleset.path",
			Message: "ruleset path or built-in name is required",
		})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "ruleset.debounce_interval",
			Message: "debounce interval must be non-negative",
		})
	}
	return errs
}

func validateRuntime(cfg *RuntimeConfig) []FieldError {
	var errs []FieldError

	switch strings.ReplaceAll(strings.ToLower(cfg.Mode), "-", "_") {
	case "strict", "sync_light", "regex_only":
	default:
		errs = append(errs, FieldError{
			Field:   "runtime.mode",
			Message: fmt.Sprintf("invalid mode %q: must be 'strict', 'sync_light', or 'regex_only'", cfg.Mode),
		})
	}
	if cfg.LatencyBudget <= 0 {
		errs = append(errs, FieldError{
			Field:   "runtime.latency_budget",
			Message: "latency budget must be positive",
		})
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "runtime.cache_ttl",
			Message: "cache ttl must be non-negative",
		})
	}
	if cfg.Workers < 1 || cfg.Workers > 64 {
		errs = append(errs, FieldError{
			Field:   "runtime.workers",
			Message: "workers must be between 1 and 64",
		})
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, FieldError{
			Field:   "runtime.queue_size",
			Message: "queue size must be at least 1",
		})
	}
	return errs
}

func validateSemantic(cfg *SemanticConfig) []FieldError {
	var errs []FieldError

	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		errs = append(errs, FieldError{
			Field:   "semantic.threshold",
			Message: "threshold must be greater than 0.0 and at most 1.0",
		})
	}

	switch cfg.Embedder {
	case "hashing":
		if cfg.HashingDimensions < 16 {
			errs = append(errs, FieldError{
				Field:   "semantic.hashing_dimensions",
				Message: "hashing dimensions must be at least 16",
			})
		}
	case "ollama":
		if _, err := url.ParseRequestURI(cfg.Ollama.URL); err != nil {
			errs = append(errs, FieldError{
				Field:   "semantic.ollama.url",
				Message: fmt.Sprintf("invalid URL %q", cfg.Ollama.URL),
			})
		}
		if cfg.Ollama.Model == "" {
			errs = append(errs, FieldError{
				Field:   "semantic.ollama.model",
				Message: "model is required when embedder is 'ollama'",
			})
		}
		if cfg.Ollama.Timeout <= 0 {
			errs = append(errs, FieldError{
				Field:   "semantic.ollama.timeout",
				Message: "timeout must be positive",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "semantic.embedder",
			Message: fmt.Sprintf("invalid embedder %q: must be 'hashing' or 'ollama'", cfg.Embedder),
		})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.LogPath == "" {
		errs = append(errs, FieldError{
			Field:   "audit.log_path",
			Message: "audit log path is required",
		})
	}
	if cfg.PreviewLength < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.preview_length",
			Message: "preview length must be non-negative",
		})
	}
	if cfg.Index.Enabled {
		if cfg.Index.Path == "" {
			errs = append(errs, FieldError{
				Field:   "audit.index.path",
				Message: "index path is required when the index is enabled",
			})
		}
		if cfg.Index.Path != "" && cfg.Index.Path == cfg.LogPath {
			errs = append(errs, FieldError{
				Field:   "audit.index.path",
				Message: "index path must differ from the audit log path",
			})
		}
		if cfg.Index.MaxOpenConns < 1 {
			errs = append(errs, FieldError{
				Field:   "audit.index.max_open_conns",
				Message: "max open connections must be at least 1",
			})
		}
		if cfg.Index.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "audit.index.busy_timeout",
				Message: "busy timeout must be non-negative",
			})
		}
	}
	return errs
}

func validateAnchor(cfg *AnchorConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "file":
		if cfg.StatePath == "" || cfg.LedgerPath == "" {
			errs = append(errs, FieldError{
				Field:   "anchor.state_path",
				Message: "state and ledger paths are required when backend is 'file'",
			})
		}
		if cfg.StatePath != "" && cfg.StatePath == cfg.LedgerPath {
			errs = append(errs, FieldError{
				Field:   "anchor.ledger_path",
				Message: "ledger path must differ from the state path",
			})
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{
				Field:   "anchor.sqlite_path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "anchor.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'file' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.ConfirmTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "anchor.confirm_timeout",
			Message: "confirm timeout must be positive",
		})
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "anchor.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
		if cfg.Sink.URL == "" {
			errs = append(errs, FieldError{
				Field:   "anchor.sink.url",
				Message: "sink URL is required when anchoring is scheduled",
			})
		}
	}

	if cfg.Sink.URL != "" {
		u, err := url.Parse(cfg.Sink.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "anchor.sink.url",
				Message: fmt.Sprintf("invalid sink URL %q: must be an http(s) URL", cfg.Sink.URL),
			})
		}
	}
	if cfg.Sink.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "anchor.sink.timeout",
			Message: "sink timeout must be non-negative",
		})
	}
	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 || cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be between 0 and 10MB",
		})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be positive",
		})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls",
				Message: "cert_file and key_file are required when TLS is enabled",
			})
		}
		if cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
			errs = append(errs, FieldError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("unsupported TLS version %q (valid: 1.2, 1.3)", cfg.TLS.MinVersion),
			})
		}
		if cfg.TLS.ReloadInterval < time.Second {
			errs = append(errs, FieldError{
				Field:   "server.tls.reload_interval",
				Message: "reload interval must be at least 1s",
			})
		}
	}

	if cfg.Auth.Enabled {
		if len(cfg.Auth.Keys) == 0 {
			errs = append(errs, FieldError{
				Field:   "server.auth.keys",
				Message: "at least one key is required when auth is enabled",
			})
		}
		seen := make(map[string]bool, len(cfg.Auth.Keys))
		for i, k := range cfg.Auth.Keys {
			field := fmt.Sprintf("server.auth.keys[%d]", i)
			if k.Name == "" {
				errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
			}
			// References are checked again once resolved.
			if len(k.Key) < 16 && !strings.Contains(k.Key, "${secret:") {
				errs = append(errs, FieldError{Field: field + ".key", Message: "key must be at least 16 characters"})
			}
			if seen[k.Key] {
				errs = append(errs, FieldError{Field: field + ".key", Message: "duplicate key"})
			}
			seen[k.Key] = true
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.requests_per_second",
				Message: "rate must be positive",
			})
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.rate_limit.burst",
				Message: "burst must be positive",
			})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: err.Error(),
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		for field, path := range map[string]string{
			"liveness_path":  cfg.Health.LivenessPath,
			"readiness_path": cfg.Health.ReadinessPath,
			"version_path":   cfg.Health.VersionPath,
		} {
			if !strings.HasPrefix(path, "/") {
				errs = append(errs, FieldError{
					Field:   "telemetry.health." + field,
					Message: "path must start with /",
				})
			}
		}
		if cfg.Health.CheckTimeout < 0 || cfg.Health.CheckTimeout > 60*time.Second {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be between 0 and 60s",
			})
		}
	}
	return errs
}
