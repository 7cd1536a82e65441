package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"candela-hq/guardian/pkg/config"
)

// newTestTracer installs an always-on tracer backed by an in-memory
// exporter and restores the global provider afterwards.
func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})

	exporter := tracetest.NewInMemoryExporter()
	tr, err := New(&config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		ServiceName: "guardian-test",
	}, WithExporter(exporter), WithVersion("1.2.3"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, exporter
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected an error for a nil config")
	}
}

func TestNew_Disabled(t *testing.T) {
	tr, err := New(&config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("Enabled() = true")
	}

	ctx, span := tr.Start(context.Background(), "noop")
	span.End()
	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span context")
	}
	if TraceID(ctx) != "" {
		t.Errorf("TraceID() = %q, want empty", TraceID(ctx))
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNew_InvalidSampler(t *testing.T) {
	_, err := New(&config.TracingConfig{Enabled: true, Sampler: "sometimes"}, WithExporter(tracetest.NewInMemoryExporter()))
	if err == nil {
		t.Fatal("expected an error for an unknown sampler")
	}
}

func TestTracer_ExportsSpans(t *testing.T) {
	tr, exporter := newTestTracer(t)

	ctx, parent := tr.Start(context.Background(), "check")
	if TraceID(ctx) == "" {
		t.Fatal("TraceID() empty inside a span")
	}
	_, child := otel.Tracer("candela-hq/guardian/pkg/guard").Start(ctx, "evaluate")
	SetStatus(child, errors.New("boom"))
	child.End()
	SetStatus(parent, nil)
	parent.End()

	if err := tr.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if spans[0].Name != "evaluate" || spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Errorf("global tracer span not parented: %+v", spans[0])
	}
	if spans[0].Status.Code != codes.Error || len(spans[0].Events) == 0 {
		t.Errorf("error not recorded: %+v", spans[0].Status)
	}
	if spans[1].Status.Code != codes.Ok {
		t.Errorf("parent status = %v, want Ok", spans[1].Status.Code)
	}

	var version string
	for _, kv := range spans[1].Resource.Attributes() {
		if kv.Key == "service.version" {
			version = kv.Value.AsString()
		}
	}
	if version != "1.2.3" {
		t.Errorf("service.version = %q", version)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{"random", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s == nil {
				t.Error("nil sampler without error")
			}
		})
	}
}

func TestCreateSampler_NeverDropsRootSpans(t *testing.T) {
	s, err := createSampler(SamplerNever, 0)
	if err != nil {
		t.Fatal(err)
	}
	res := s.ShouldSample(sdktrace.SamplingParameters{ParentContext: context.Background(), Name: "x"})
	if res.Decision != sdktrace.Drop {
		t.Errorf("decision = %v, want Drop", res.Decision)
	}
}
