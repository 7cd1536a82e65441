// Package telemetry groups Guardian's observability packages.
//
//   - logging: slog setup with request and trace fields and PII redaction
//   - metrics: Prometheus collector for checks, rechecks, anchoring and HTTP
//   - tracing: OpenTelemetry tracer provider with OTLP/gRPC export
//   - health: liveness, readiness and version probes
//
// The serve command wires them in this order: logging first so every later
// component logs through the configured handler, then tracing and metrics,
// then health checks once the runtime and stores exist.
package telemetry
