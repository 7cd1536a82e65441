package config

import "time"

// Config is the root configuration structure for Guardian.
type Config struct {
	// Ruleset selects the directive ruleset and how it is reloaded.
	Ruleset RulesetConfig `yaml:"ruleset"`

	// Runtime configures the execution runtime: mode, cache and background
	// workers.
	Runtime RuntimeConfig `yaml:"runtime"`

	// Semantic configures the semantic matcher and its embedding backend.
	Semantic SemanticConfig `yaml:"semantic"`

	// Audit configures the append-only audit log, the latency log and the
	// SQLite query index.
	Audit AuditConfig `yaml:"audit"`

	// Anchor configures anchoring state, the ledger and the sink.
	Anchor AnchorConfig `yaml:"anchor"`

	// Server contains HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for logging, metrics, tracing and
	// health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures where ${secret:name} references are resolved.
	Secrets SecretsConfig `yaml:"secrets"`

	// Lint configures the answer format rules reported by "guardian lint"
	// and POST /v1/lint.
	Lint LintConfig `yaml:"lint"`
}

// LintConfig selects the enforced format rules.
type LintConfig struct {
	// RequireConfidence makes a missing "Confidence: High|Medium|Low" tag a
	// violation instead of an advisory.
	// Default: false
	RequireConfidence bool `yaml:"require_confidence"`

	// RequireUncertain requires an [uncertain] tag.
	// Default: false
	RequireUncertain bool `yaml:"require_uncertain"`

	// Microformats enables the Premise/Inference, Related and
	// First-principles formats when an answer uses their markers.
	// Default: true
	Microformats bool `yaml:"microformats"`
}

// SecretsConfig lists the secret providers, tried in order: the
// environment first, then the secrets directory when one is set.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name, with hyphens
	// turned into underscores.
	// Default: "GUARDIAN_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret, named after the secret. Files must be
	// mode 0600 or 0400.
	Dir string `yaml:"dir"`
}

// RulesetConfig selects the ruleset in force.
type RulesetConfig struct {
	// Path is a ruleset file (.json, .yaml, .yml) or the name of a built-in
	// ruleset such as "baseline".
	// Default: "baseline"
	Path string `yaml:"path"`

	// Watch reloads the ruleset file on change while serving.
	// Default: true
	Watch bool `yaml:"watch"`

	// DebounceInterval is how long file events must settle before a reload.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// RuntimeConfig configures the execution runtime.
type RuntimeConfig struct {
	// Mode selects semantic scheduling.
	// Options: "strict", "sync_light", "regex_only"
	// Default: "sync_light"
	Mode string `yaml:"mode"`

	// LatencyBudget is the fast-path time above which verdicts are annotated.
	// Default: 120ms
	LatencyBudget time.Duration `yaml:"latency_budget"`

	// CacheTTL is how long verdicts are reused for identical input.
	// Default: 24h
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Workers is the number of background workers for rechecks and warmup.
	// Default: 1
	Workers int `yaml:"workers"`

	// QueueSize bounds the background job queue. Jobs beyond it are dropped.
	// Default: 256
	QueueSize int `yaml:"queue_size"`
}

// SemanticConfig configures semantic matching.
type SemanticConfig struct {
	// Enabled turns semantic checks on for strict and sync_light.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Threshold is the default cosine similarity at which a phrase blocks.
	// Checks may override it.
	// Default: 0.80
	Threshold float64 `yaml:"threshold"`

	// Embedder selects the embedding backend.
	// Options: "hashing" (offline, deterministic), "ollama"
	// Default: "hashing"
	Embedder string `yaml:"embedder"`

	// HashingDimensions is the vector size of the hashing embedder.
	// Default: 512
	HashingDimensions int `yaml:"hashing_dimensions"`

	// Ollama configures the Ollama embedding backend.
	Ollama OllamaConfig `yaml:"ollama"`
}

// OllamaConfig configures the Ollama embedding backend.
type OllamaConfig struct {
	// URL is the Ollama base URL.
	// Default: "http://localhost:11434"
	URL string `yaml:"url"`

	// Model is the embedding model name.
	// Default: "all-minilm"
	Model string `yaml:"model"`

	// Timeout bounds each embedding request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig configures audit persistence.
type AuditConfig struct {
	// LogPath is the append-only JSONL audit log.
	// Default: "logs/output_log.jsonl"
	LogPath string `yaml:"log_path"`

	// StoreText writes the full checked text into each entry. When false
	// only a preview of PreviewLength characters is kept.
	// Default: true
	StoreText bool `yaml:"store_text"`

	// PreviewLength is the preview size when StoreText is false.
	// Default: 200
	PreviewLength int `yaml:"preview_length"`

	// Sync fsyncs the audit log after every append.
	// Default: true
	Sync bool `yaml:"sync"`

	// LatencyLogPath is the JSONL file of per-check timings. Empty disables
	// the file; metrics are still collected.
	// Default: "logs/latency_log.jsonl"
	LatencyLogPath string `yaml:"latency_log_path"`

	// Index configures the SQLite query index over the audit log.
	Index AuditIndexConfig `yaml:"index"`

	// Export configures audit export formats.
	Export AuditExportConfig `yaml:"export"`
}

// AuditIndexConfig configures the SQLite audit index.
type AuditIndexConfig struct {
	// Enabled maintains the index on every append.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file.
	// Default: "logs/audit_index.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the connection pool size.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a locked database is retried.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AuditExportConfig configures audit exports.
type AuditExportConfig struct {
	// JSONPretty indents JSON exports.
	// Default: true
	JSONPretty bool `yaml:"json_pretty"`

	// CSVIncludeHeader writes a header row in CSV exports.
	// Default: true
	CSVIncludeHeader bool `yaml:"csv_include_header"`
}

// AnchorConfig configures anchoring.
type AnchorConfig struct {
	// Backend selects where state and ledger are kept.
	// Options: "file", "sqlite"
	// Default: "file"
	Backend string `yaml:"backend"`

	// StatePath is the anchoring state file (file backend).
	// Default: "logs/output_anchor_state.json"
	StatePath string `yaml:"state_path"`

	// LedgerPath is the JSONL ledger (file backend).
	// Default: "logs/anchor_ledger.jsonl"
	LedgerPath string `yaml:"ledger_path"`

	// SQLitePath is the database file (sqlite backend).
	// Default: "logs/anchor.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is how long a locked database is retried (sqlite backend).
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// ConfirmTimeout bounds a single submission including confirmation.
	// Default: 120s
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`

	// Schedule is a cron expression for periodic anchoring while serving.
	// Empty disables scheduled anchoring.
	// Example: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// Sink configures the JSON-RPC anchoring endpoint.
	Sink SinkConfig `yaml:"sink"`
}

// SinkConfig configures the JSON-RPC anchoring sink.
type SinkConfig struct {
	// URL is the JSON-RPC endpoint. Required for anything but dry runs.
	URL string `yaml:"url"`

	// Timeout bounds each HTTP request to the sink.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Headers are added to every request, e.g. an Authorization header.
	// Values should be loaded from the environment.
	Headers map[string]string `yaml:"headers"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the size of a check request body.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TLS serves the API over HTTPS.
	TLS TLSConfig `yaml:"tls"`

	// Auth requires an API key on the /v1 routes.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit throttles check requests per client.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// TLSConfig configures HTTPS for the API server.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM files. They are re-read when their
	// modification time changes, so renewed certificates need no restart.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`

	// ClientCAFile enables mutual TLS: clients must present a certificate
	// signed by one of these CAs.
	ClientCAFile string `yaml:"client_ca_file"`
}

// AuthConfig configures API key authentication.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// Header carries the key.
	// Default: "Authorization"
	Header string `yaml:"header"`

	// Scheme is stripped from the header value when present.
	// Default: "Bearer"
	Scheme string `yaml:"scheme"`

	// Keys lists the accepted keys. Name identifies the client in logs and
	// rate limiting; the key itself is never logged.
	Keys []APIKey `yaml:"keys"`
}

// APIKey is one accepted API key.
type APIKey struct {
	Name     string `yaml:"name"`
	Key      string `yaml:"key"`
	Disabled bool   `yaml:"disabled"`
}

// RateLimitConfig throttles POST /v1/check with a token bucket per client.
// Clients are identified by API key name when auth is enabled and by
// remote address otherwise.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate.
	// Default: 50
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket capacity.
	// Default: 100
	Burst int `yaml:"burst"`

	// IdleTimeout drops the bucket of a client not seen for this long.
	// Default: 10m
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII redacts emails, SSNs, card numbers and key material in log
	// attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "guardian"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: ""
	Subsystem string `yaml:"subsystem"`

	// CheckDurationBuckets defines histogram buckets for check latency (seconds).
	// Default: [0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.12, 0.25, 0.5, 1, 2.5]
	CheckDurationBuckets []float64 `yaml:"check_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "guardian"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
