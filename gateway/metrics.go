package gateway

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/deliverly/deliverly-go/gateway"

// requestMetrics counts outbound requests and failures per operation.
// With no meter provider installed these are no-ops.
type requestMetrics struct {
	requests metric.Int64Counter
	failures metric.Int64Counter
}

func newRequestMetrics() *requestMetrics {
	meter := otel.Meter(meterName)
	requests, _ := meter.Int64Counter("deliverly.client.requests",
		metric.WithDescription("Outbound requests to the ordering API"))
	failures, _ := meter.Int64Counter("deliverly.client.request.failures",
		metric.WithDescription("Failed outbound requests by reason"))
	return &requestMetrics{requests: requests, failures: failures}
}

func (m *requestMetrics) recordRequest(ctx context.Context, op string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *requestMetrics) recordFailure(ctx context.Context, op, reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("reason", reason),
	))
}
