package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardian.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func envMap(vars map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
ruleset:
  path: rulesets/house.yaml
runtime:
  mode: strict
  latency_budget: 50ms
  workers: 2
semantic:
  embedder: ollama
  threshold: 0.75
  ollama:
    model: nomic-embed-text
audit:
  log_path: /var/lib/guardian/output_log.jsonl
anchor:
  backend: sqlite
  schedule: "*/15 * * * *"
  sink:
    url: https://anchor.example.net/rpc
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Ruleset.Path != "rulesets/house.yaml" {
		t.Errorf("ruleset.path = %q", cfg.Ruleset.Path)
	}
	if cfg.Runtime.Mode != "strict" || cfg.Runtime.LatencyBudget != 50*time.Millisecond || cfg.Runtime.Workers != 2 {
		t.Errorf("runtime = %+v", cfg.Runtime)
	}
	if cfg.Semantic.Embedder != "ollama" || cfg.Semantic.Threshold != 0.75 {
		t.Errorf("semantic = %+v", cfg.Semantic)
	}
	if cfg.Semantic.Ollama.URL != DefaultOllamaURL {
		t.Errorf("ollama url = %q, want default", cfg.Semantic.Ollama.URL)
	}
	if cfg.Semantic.Ollama.Model != "nomic-embed-text" {
		t.Errorf("ollama model = %q", cfg.Semantic.Ollama.Model)
	}
	if cfg.Anchor.Backend != "sqlite" || cfg.Anchor.Schedule != "*/15 * * * *" {
		t.Errorf("anchor = %+v", cfg.Anchor)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address = %q, want default", cfg.Server.ListenAddress)
	}
}

func TestLoadConfig_ExplicitFalseOverridesDefaultTrue(t *testing.T) {
	path := writeConfig(t, `
ruleset:
  watch: false
semantic:
  enabled: false
audit:
  store_text: false
  index:
    enabled: false
telemetry:
  metrics:
    enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Ruleset.Watch || cfg.Semantic.Enabled || cfg.Audit.StoreText || cfg.Audit.Index.Enabled || cfg.Telemetry.Metrics.Enabled {
		t.Errorf("explicit false values were not kept: %+v", cfg)
	}
	if !cfg.Audit.Sync {
		t.Error("unspecified audit.sync should keep its default")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "runtime: [unclosed", "failed to parse"},
		{"bad mode", "runtime:\n  mode: turbo\n", "runtime.mode"},
		{"bad duration", "runtime:\n  latency_budget: soon\n", "failed to parse"},
		{"bad cron", "anchor:\n  schedule: every now and then\n  sink:\n    url: http://x\n", "anchor.schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfigWithEnvOverrides_EmptyPath(t *testing.T) {
	t.Setenv("GUARDIAN_RUNTIME_MODE", "regex_only")
	t.Setenv("GUARDIAN_SEMANTIC_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Runtime.Mode != "regex_only" {
		t.Errorf("runtime.mode = %q, want regex_only", cfg.Runtime.Mode)
	}
	if cfg.Semantic.Enabled {
		t.Error("semantic.enabled should be overridden to false")
	}
}

func TestLoadConfigWithEnvOverrides_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, "runtime:\n  mode: strict\n")
	t.Setenv("GUARDIAN_RUNTIME_MODE", "sync-light")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Runtime.Mode != "sync-light" {
		t.Errorf("runtime.mode = %q, want sync-light", cfg.Runtime.Mode)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	err := applyEnvOverrides(cfg, envMap(map[string]string{
		"GUARDIAN_RULESET_PATH":            "privacy_strict",
		"GUARDIAN_RUNTIME_LATENCY_BUDGET":  "80ms",
		"GUARDIAN_RUNTIME_WORKERS":         "3",
		"GUARDIAN_SEMANTIC_THRESHOLD":      "0.9",
		"GUARDIAN_AUDIT_STORE_TEXT":        "false",
		"GUARDIAN_ANCHOR_SINK_URL":         "https://anchor.example.net/rpc",
		"GUARDIAN_ANCHOR_SINK_TOKEN":       " s3cret ",
		"GUARDIAN_TELEMETRY_LOGGING_LEVEL": "warn",
		"GUARDIAN_SERVER_LISTEN_ADDRESS":   "",
		"GUARDIAN_SERVER_RATE_LIMIT_BURST": "7",
		"GUARDIAN_SECRETS_DIR":             "/run/secrets/guardian",
		"GUARDIAN_LINT_MICROFORMATS":       "false",
	}))
	if err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Ruleset.Path != "privacy_strict" {
		t.Errorf("ruleset.path = %q", cfg.Ruleset.Path)
	}
	if cfg.Runtime.LatencyBudget != 80*time.Millisecond {
		t.Errorf("latency budget = %v", cfg.Runtime.LatencyBudget)
	}
	if cfg.Runtime.Workers != 3 {
		t.Errorf("workers = %d", cfg.Runtime.Workers)
	}
	if cfg.Semantic.Threshold != 0.9 {
		t.Errorf("threshold = %v", cfg.Semantic.Threshold)
	}
	if cfg.Audit.StoreText {
		t.Error("audit.store_text should be false")
	}
	if got := cfg.Anchor.Sink.Headers["Authorization"]; got != "Bearer s3cret" {
		t.Errorf("Authorization header = %q", got)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("logging level = %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("empty variable should be ignored, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.RateLimit.Burst != 7 {
		t.Errorf("rate limit burst = %d", cfg.Server.RateLimit.Burst)
	}
	if cfg.Secrets.Dir != "/run/secrets/guardian" {
		t.Errorf("secrets.dir = %q", cfg.Secrets.Dir)
	}
	if cfg.Lint.Microformats {
		t.Error("lint.microformats should be false")
	}
}

func TestApplyEnvOverrides_CollectsParseErrors(t *testing.T) {
	cfg := Default()
	err := applyEnvOverrides(cfg, envMap(map[string]string{
		"GUARDIAN_RUNTIME_WORKERS":     "many",
		"GUARDIAN_SEMANTIC_ENABLED":    "perhaps",
		"GUARDIAN_RUNTIME_CACHE_TTL":   "1 day",
		"GUARDIAN_SEMANTIC_THRESHOLD":  "high",
		"GUARDIAN_RUNTIME_QUEUE_SIZE":  "16",
		"GUARDIAN_TELEMETRY_UNRELATED": "x",
	}))

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Errors) != 4 {
		t.Fatalf("expected 4 field errors, got %d: %v", len(verr.Errors), verr)
	}
	if cfg.Runtime.Workers != DefaultRuntimeWorkers {
		t.Errorf("failed override changed workers to %d", cfg.Runtime.Workers)
	}
	if cfg.Runtime.QueueSize != 16 {
		t.Errorf("valid override alongside failures was not applied: %d", cfg.Runtime.QueueSize)
	}
}
