package config

import "time"

// Default values for configuration fields.
const (
	// Ruleset defaults
	DefaultRulesetPath             = "baseline"
	DefaultRulesetWatch            = true
	DefaultRulesetDebounceInterval = 100 * time.Millisecond

	// Runtime defaults
	DefaultRuntimeMode          = "sync_light"
	DefaultRuntimeLatencyBudget = 120 * time.Millisecond
	DefaultRuntimeCacheTTL      = 24 * time.Hour
	DefaultRuntimeWorkers       = 1
	DefaultRuntimeQueueSize     = 256

	// Semantic defaults
	DefaultSemanticEnabled           = true
	DefaultSemanticThreshold         = 0.80
	DefaultSemanticEmbedder          = "hashing"
	DefaultSemanticHashingDimensions = 512
	DefaultOllamaURL                 = "http://localhost:11434"
	DefaultOllamaModel               = "all-minilm"
	DefaultOllamaTimeout             = 30 * time.Second

	// Audit defaults
	DefaultAuditLogPath           = "logs/output_log.jsonl"
	DefaultAuditStoreText         = true
	DefaultAuditPreviewLength     = 200
	DefaultAuditSync              = true
	DefaultAuditLatencyLogPath    = "logs/latency_log.jsonl"
	DefaultAuditIndexEnabled      = true
	DefaultAuditIndexPath         = "logs/audit_index.db"
	DefaultAuditIndexMaxOpenConns = 1
	DefaultAuditIndexWALMode      = true
	DefaultAuditIndexBusyTimeout  = 5 * time.Second
	DefaultAuditExportJSONPretty  = true
	DefaultAuditExportCSVHeader   = true

	// Anchor defaults
	DefaultAnchorBackend        = "file"
	DefaultAnchorStatePath      = "logs/output_anchor_state.json"
	DefaultAnchorLedgerPath     = "logs/anchor_ledger.jsonl"
	DefaultAnchorSQLitePath     = "logs/anchor.db"
	DefaultAnchorBusyTimeout    = 5 * time.Second
	DefaultAnchorConfirmTimeout = 120 * time.Second
	DefaultAnchorSinkTimeout    = 30 * time.Second

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = 1048576 // 1MB
	DefaultTLSMinVersion   = "1.3"
	DefaultTLSReload       = 5 * time.Minute
	DefaultAuthHeader      = "Authorization"
	DefaultAuthScheme      = "Bearer"
	DefaultRateLimitRPS    = 50
	DefaultRateLimitBurst  = 100
	DefaultRateLimitIdle   = 10 * time.Minute

	// Secrets defaults
	DefaultSecretsEnvPrefix = "GUARDIAN_SECRET_"

	// Lint defaults
	DefaultLintMicroformats = true

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedactPII    = true
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "guardian"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 0.1
	DefaultTracingServiceName  = "guardian"
	DefaultOTLPInsecure        = true
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultVersionPath         = "/version"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultCheckDurationBuckets are histogram buckets (seconds) around the
// default 120ms latency budget.
var DefaultCheckDurationBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.12, 0.25, 0.5, 1, 2.5}

// Default returns a configuration with every field at its default value.
// Files are decoded on top of it, so boolean options that default to true
// can still be switched off explicitly.
func Default() *Config {
	cfg := &Config{}
	cfg.Ruleset.Watch = DefaultRulesetWatch
	cfg.Semantic.Enabled = DefaultSemanticEnabled
	cfg.Audit.StoreText = DefaultAuditStoreText
	cfg.Audit.Sync = DefaultAuditSync
	cfg.Audit.LatencyLogPath = DefaultAuditLatencyLogPath
	cfg.Audit.Index.Enabled = DefaultAuditIndexEnabled
	cfg.Audit.Index.WALMode = DefaultAuditIndexWALMode
	cfg.Audit.Export.JSONPretty = DefaultAuditExportJSONPretty
	cfg.Audit.Export.CSVIncludeHeader = DefaultAuditExportCSVHeader
	cfg.Telemetry.Logging.RedactPII = DefaultLoggingRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.OTLP.Insecure = DefaultOTLPInsecure
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	cfg.Lint.Microformats = DefaultLintMicroformats
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset (zero) non-boolean field with its default.
func ApplyDefaults(cfg *Config) {
	// Ruleset defaults
	if cfg.Ruleset.Path == "" {
		cfg.Ruleset.Path = DefaultRulesetPath
	}
	if cfg.Ruleset.DebounceInterval == 0 {
		cfg.Ruleset.DebounceInterval = DefaultRulesetDebounceInterval
	}

	// Runtime defaults
	if cfg.Runtime.Mode == "" {
		cfg.Runtime.Mode = DefaultRuntimeMode
	}
	if cfg.Runtime.LatencyBudget == 0 {
		cfg.Runtime.LatencyBudget = DefaultRuntimeLatencyBudget
	}
	if cfg.Runtime.CacheTTL == 0 {
		cfg.Runtime.CacheTTL = DefaultRuntimeCacheTTL
	}
	if cfg.Runtime.Workers == 0 {
		cfg.Runtime.Workers = DefaultRuntimeWorkers
	}
	if cfg.Runtime.QueueSize == 0 {
		cfg.Runtime.QueueSize = DefaultRuntimeQueueSize
	}

	// Semantic defaults
	if cfg.Semantic.Threshold == 0 {
		cfg.Semantic.Threshold = DefaultSemanticThreshold
	}
	if cfg.Semantic.Embedder == "" {
		cfg.Semantic.Embedder = DefaultSemanticEmbedder
	}
	if cfg.Semantic.HashingDimensions == 0 {
		cfg.Semantic.HashingDimensions = DefaultSemanticHashingDimensions
	}
	if cfg.Semantic.Ollama.URL == "" {
		cfg.Semantic.Ollama.URL = DefaultOllamaURL
	}
	if cfg.Semantic.Ollama.Model == "" {
		cfg.Semantic.Ollama.Model = DefaultOllamaModel
	}
	if cfg.Semantic.Ollama.Timeout == 0 {
		cfg.Semantic.Ollama.Timeout = DefaultOllamaTimeout
	}

	// Audit defaults
	if cfg.Audit.LogPath == "" {
		cfg.Audit.LogPath = DefaultAuditLogPath
	}
	if cfg.Audit.PreviewLength == 0 {
		cfg.Audit.PreviewLength = DefaultAuditPreviewLength
	}
	if cfg.Audit.Index.Path == "" {
		cfg.Audit.Index.Path = DefaultAuditIndexPath
	}
	if cfg.Audit.Index.MaxOpenConns == 0 {
		cfg.Audit.Index.MaxOpenConns = DefaultAuditIndexMaxOpenConns
	}
	if cfg.Audit.Index.BusyTimeout == 0 {
		cfg.Audit.Index.BusyTimeout = DefaultAuditIndexBusyTimeout
	}

	// Anchor defaults
	if cfg.Anchor.Backend == "" {
		cfg.Anchor.Backend = DefaultAnchorBackend
	}
	if cfg.Anchor.StatePath == "" {
		cfg.Anchor.StatePath = DefaultAnchorStatePath
	}
	if cfg.Anchor.LedgerPath == "" {
		cfg.Anchor.LedgerPath = DefaultAnchorLedgerPath
	}
	if cfg.Anchor.SQLitePath == "" {
		cfg.Anchor.SQLitePath = DefaultAnchorSQLitePath
	}
	if cfg.Anchor.BusyTimeout == 0 {
		cfg.Anchor.BusyTimeout = DefaultAnchorBusyTimeout
	}
	if cfg.Anchor.ConfirmTimeout == 0 {
		cfg.Anchor.ConfirmTimeout = DefaultAnchorConfirmTimeout
	}
	if cfg.Anchor.Sink.Timeout == 0 {
		cfg.Anchor.Sink.Timeout = DefaultAnchorSinkTimeout
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReload
	}
	if cfg.Server.Auth.Header == "" {
		cfg.Server.Auth.Header = DefaultAuthHeader
	}
	if cfg.Server.Auth.Scheme == "" {
		cfg.Server.Auth.Scheme = DefaultAuthScheme
	}
	if cfg.Server.RateLimit.RequestsPerSecond == 0 {
		cfg.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = DefaultRateLimitBurst
	}
	if cfg.Server.RateLimit.IdleTimeout == 0 {
		cfg.Server.RateLimit.IdleTimeout = DefaultRateLimitIdle
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.CheckDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.CheckDurationBuckets = append([]float64(nil), DefaultCheckDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
