package tracing

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/uporders-backend/pkg/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	p, err := Setup(context.Background(), config.TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected an invalid span context from the noop tracer")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNilProviderTracer(t *testing.T) {
	var p *Provider
	if p.Tracer() == nil {
		t.Fatalf("tracer should never be nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}
}

func TestInjectExtractRoundTrip(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	attrs := map[string]string{}
	Inject(ctx, attrs)
	if attrs["traceparent"] == "" {
		t.Fatalf("expected traceparent attribute, got %+v", attrs)
	}

	remote := trace.SpanContextFromContext(Extract(context.Background(), attrs))
	if remote.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("trace id not propagated")
	}
	if !remote.IsRemote() {
		t.Fatalf("extracted span context should be remote")
	}
}

func TestExtractWithoutAttributes(t *testing.T) {
	ctx := context.Background()
	if Extract(ctx, nil) != ctx {
		t.Fatalf("expected ctx unchanged")
	}
	Inject(ctx, nil)
}
