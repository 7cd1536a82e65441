// Package tracing sets up OpenTelemetry tracing for Guardian.
//
// New installs an SDK tracer provider exporting over OTLP/gRPC and the W3C
// trace context propagator. Packages such as guard obtain their tracer from
// otel.Tracer, so they report into the same provider without a dependency
// on this package. When tracing is disabled a noop tracer is used and the
// overhead is a few nanoseconds per span.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(version))
//	defer tracer.Shutdown(context.Background())
//	handler = tracing.HTTPMiddleware(tracer.Trace(), "/v1/check")(handler)
//
// Sampling is parent-based: an incoming sampled traceparent is honoured,
// otherwise the configured strategy (always, never or ratio) decides.
package tracing
