// Package metrics exposes Guardian's Prometheus metrics.
//
// A single Collector is created per process and passed to the components it
// observes:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	guard.New(&gcfg, provider, log, guard.WithMetrics(collector))
//	anchorer.SetMetrics(collector)
//	latency.NewRecorder(path, collector)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Metric families:
//   - guardian_checks_total, guardian_check_duration_seconds
//   - guardian_check_path_duration_seconds, guardian_latency_budget_exceeded_total
//   - guardian_rechecks_total, guardian_jobs_dropped_total, guardian_jobs_failed_total
//   - guardian_anchor_passes_total, guardian_anchored_lines_total
//   - guardian_http_requests_total, guardian_http_request_duration_seconds
//
// When metrics are disabled in the configuration every observation is a
// no-op; the handler then serves only the Go runtime and process collectors.
package metrics
