// Package telemetry wires OpenTelemetry for applications embedding the
// SDK. Installing a provider makes the spans emitted around checkout and
// the HTTP transport visible; without one they are no-ops.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider owns the installed tracer provider and flushes it on
// shutdown.
type Provider struct {
	traceProvider *sdktrace.TracerProvider
}

// NewStdoutProvider installs a tracer provider that writes spans to the
// given writer as JSON. Intended for development and examples; a real
// deployment installs its own exporter through InstallTracerProvider.
func NewStdoutProvider(serviceName string, out io.Writer) (*Provider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(out),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	install(tp)
	return &Provider{traceProvider: tp}, nil
}

// InstallTracerProvider registers an externally built provider as the
// global one used by the SDK's instrumentation.
func InstallTracerProvider(tp *sdktrace.TracerProvider) *Provider {
	install(tp)
	return &Provider{traceProvider: tp}
}

func install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes pending spans and releases the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.traceProvider == nil {
		return nil
	}
	return p.traceProvider.Shutdown(ctx)
}
