// Package config provides configuration management for Guardian.
//
// Configuration is read from a YAML file, completed with defaults and then
// overridden from the environment. Validation collects every problem so a
// broken file is reported in one pass.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("guardian.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("guardian.yaml")
//
// LoadConfigWithEnvOverrides also accepts an empty path, in which case it
// starts from Default.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention GUARDIAN_SECTION_FIELD:
//
//   - GUARDIAN_RUNTIME_MODE overrides runtime.mode
//   - GUARDIAN_RULESET_PATH overrides ruleset.path
//   - GUARDIAN_ANCHOR_SINK_URL overrides anchor.sink.url
//   - GUARDIAN_ANCHOR_SINK_TOKEN sets a bearer Authorization header on the sink
//   - GUARDIAN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Example Configuration
//
//	ruleset:
//	  path: rulesets/house.yaml
//	  watch: true
//	runtime:
//	  mode: strict
//	  latency_budget: 120ms
//	semantic:
//	  embedder: ollama
//	  ollama:
//	    url: http://localhost:11434
//	audit:
//	  log_path: logs/output_log.jsonl
//	  store_text: false
//	anchor:
//	  backend: sqlite
//	  schedule: "*/15 * * * *"
//	  sink:
//	    url: https://anchor.example.net/rpc
package config
