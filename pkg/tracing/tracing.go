// Package tracing boots the OpenTelemetry tracer provider and carries trace
// context across the order request queue.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/angelmondragon/uporders-backend/pkg/config"
)

const instrumentationName = "github.com/angelmondragon/uporders-backend"

var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Provider owns the tracer and its shutdown hook.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Setup exports spans over OTLP/HTTP when tracing is enabled and falls back
// to a no-op tracer otherwise.
func Setup(ctx context.Context, cfg config.TracingConfig) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	return &Provider{
		tracer:   tp.Tracer(instrumentationName),
		shutdown: tp.Shutdown,
	}, nil
}

// Noop returns a provider whose spans are discarded.
func Noop() *Provider {
	return &Provider{
		tracer:   noop.NewTracerProvider().Tracer(instrumentationName),
		shutdown: func(context.Context) error { return nil },
	}
}

// Tracer never returns nil.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Inject writes the span context of ctx into message attributes.
func Inject(ctx context.Context, attrs map[string]string) {
	if attrs == nil {
		return
	}
	propagator.Inject(ctx, propagation.MapCarrier(attrs))
}

// Extract returns ctx carrying the remote span context found in attrs.
func Extract(ctx context.Context, attrs map[string]string) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, propagation.MapCarrier(attrs))
}
