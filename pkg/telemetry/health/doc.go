// Package health implements liveness, readiness and version probes.
//
// Liveness always succeeds while the process serves HTTP. Readiness runs
// every registered check concurrently, each bounded by the configured
// timeout; Guardian registers checks for the loaded ruleset, the audit log
// directory, the anchor store and, when enabled, the audit index database.
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("audit_log", health.DirWritable(cfg.Audit.LogPath))
//	checker.Register(mux, health.Paths{Liveness: "/health", Readiness: "/ready", Version: "/version"}, info)
package health
