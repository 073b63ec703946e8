// Package gateway implements the HTTP boundary to the remote ordering API.
// Gateways are stateless request/response wrappers: they attach the bearer
// token from the identity they are handed, classify failures into the
// client error taxonomy, and never retry. Retry and reconciliation policy
// belong to the synchronizers.
package gateway

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/deliverly/deliverly-go/core"
)

// breakerTransport wraps a RoundTripper with circuit breaker protection.
// One breaker guards the whole remote API: the client talks to a single
// backend, so when it is down every gateway should fail fast.
//
// Server errors (5xx) and transport failures count as breaker failures;
// client errors (4xx) do not affect circuit state.
type breakerTransport struct {
	underlying http.RoundTripper
	breaker    core.CircuitBreaker
}

// NewBreakerTransport wraps base with the given circuit breaker.
func NewBreakerTransport(base http.RoundTripper, breaker core.CircuitBreaker) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &breakerTransport{underlying: base, breaker: breaker}
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.breaker.CanExecute() {
		return nil, fmt.Errorf("request to %s rejected: %w", req.URL.Path, core.ErrCircuitOpen)
	}

	resp, err := t.underlying.RoundTrip(req)
	if err != nil {
		t.breaker.RecordFailure()
		return nil, err
	}
	if resp.StatusCode >= 500 {
		t.breaker.RecordFailure()
	} else {
		t.breaker.RecordSuccess()
	}
	return resp, nil
}

// NewHTTPClient builds the outbound HTTP client shared by all gateways:
// base transport, optional OTel instrumentation, then the circuit breaker
// outermost so rejected requests never reach the tracer as server calls.
func NewHTTPClient(cfg *core.Config, breaker core.CircuitBreaker) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	if cfg.Telemetry.Enabled {
		rt = otelhttp.NewTransport(rt)
	}
	if breaker != nil {
		rt = NewBreakerTransport(rt, breaker)
	}
	return &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: rt,
	}
}
