// Package telemetry configures OpenTelemetry tracing for the service and
// provides the span helpers used by every domain operation.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
)

// Config selects the span exporter.
type Config struct {
	// Exporter is one of "none", "stdout" or "otlp".
	Exporter     string  `env:"EXPORTER" envDefault:"none"`
	OTLPEndpoint string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4317"`
	SampleRate   float64 `env:"SAMPLE_RATE" envDefault:"1"`
	ServiceName  string  `env:"SERVICE_NAME" envDefault:"service-events-go"`
}

// Provider wraps the SDK tracer provider. A zero Provider is valid and does nothing.
type Provider struct {
	provider *sdktrace.TracerProvider
}

// NewProvider installs a global tracer provider. With Exporter "none" the
// global no-op provider is left in place.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "", "none":
		return &Provider{}, nil
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}
	// schemaless avoids schema version conflicts with resource.Default()
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return &Provider{provider: tp}, nil
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Start opens a span named op on tracer.
func Start(ctx context.Context, tracer trace.Tracer, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// End closes span, marking it failed when err is a store fault. Expected
// domain outcomes (not found, conflict, ...) are recorded as an attribute only.
func End(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	kind := apperror.KindOf(err)
	span.SetAttributes(attribute.String("error.kind", kind.String()))
	var ae *apperror.Error
	if kind == apperror.KindStore || !errors.As(err, &ae) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
