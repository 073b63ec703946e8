package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/deliverly/deliverly-go/core"
)

// Gateway holds what every concrete gateway needs: the base URL, the
// shared HTTP client, and a logger. Concrete gateways embed it.
type Gateway struct {
	baseURL string
	client  *http.Client
	logger  core.Logger
	metrics *requestMetrics
}

func newGateway(baseURL string, client *http.Client, logger core.Logger) Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
		metrics: newRequestMetrics(),
	}
}

// envelope is the uniform response shape of the remote API. Operation
// specific payloads (carts, orders, user) are decoded by the caller from
// the same bytes.
type envelope struct {
	Success         bool   `json:"success"`
	ResponseMessage string `json:"responseMessage"`
}

// requireToken enforces the client-side precondition that every
// authenticated call carries a bearer token. Missing token never reaches
// the network.
func requireToken(op string, kind core.ErrorKind, identity core.Identity) error {
	if identity.Valid() {
		return nil
	}
	return &core.ClientError{
		Op:   op,
		Kind: kind,
		Err:  fmt.Errorf("missing bearer token: %w", core.ErrUnauthenticated),
	}
}

// do issues one request and decodes the envelope plus, when out is not
// nil, the operation payload from the same body. Failures are classified
// into the error taxonomy; the envelope's responseMessage is preserved
// verbatim for the UI.
func (g Gateway) do(ctx context.Context, op string, kind core.ErrorKind, method, path string, query url.Values, token string, body interface{}, out interface{}) error {
	u := g.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &core.ClientError{Op: op, Kind: kind, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &core.ClientError{Op: op, Kind: kind, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	g.metrics.recordRequest(ctx, op)

	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.recordFailure(ctx, op, "transport")
		if errors.Is(err, core.ErrCircuitOpen) {
			return &core.ClientError{Op: op, Kind: kind, Err: err}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &core.ClientError{Op: op, Kind: kind, Err: err}
		}
		g.logger.Warn("Request transport failure", map[string]interface{}{
			"operation": op,
			"method":    method,
			"path":      path,
			"error":     err.Error(),
		})
		return &core.ClientError{Op: op, Kind: kind, Err: fmt.Errorf("%v: %w", err, core.ErrNetworkUnreachable)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		g.metrics.recordFailure(ctx, op, "transport")
		return &core.ClientError{Op: op, Kind: kind, Err: fmt.Errorf("read response: %w", core.ErrNetworkUnreachable)}
	}

	if err := classifyStatus(op, kind, resp.StatusCode, data); err != nil {
		g.metrics.recordFailure(ctx, op, fmt.Sprintf("http_%d", resp.StatusCode))
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		g.metrics.recordFailure(ctx, op, "decode")
		return &core.ClientError{Op: op, Kind: kind, Err: fmt.Errorf("decode response: %w", core.ErrServerRejected)}
	}
	if !env.Success {
		g.metrics.recordFailure(ctx, op, "rejected")
		return &core.ClientError{
			Op:      op,
			Kind:    kind,
			Message: env.ResponseMessage,
			Err:     core.ErrServerRejected,
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			g.metrics.recordFailure(ctx, op, "decode")
			return &core.ClientError{Op: op, Kind: kind, Err: fmt.Errorf("decode payload: %w", core.ErrServerRejected)}
		}
	}
	return nil
}

// classifyStatus maps HTTP status codes onto the taxonomy. The remote API
// reports most domain failures through success=false with a 200, so only
// transport-level statuses are handled here.
func classifyStatus(op string, kind core.ErrorKind, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &core.ClientError{Op: op, Kind: kind, Message: serverMessage(body), Err: core.ErrUnauthenticated}
	case status == http.StatusNotFound:
		return &core.ClientError{Op: op, Kind: kind, Message: serverMessage(body), Err: core.ErrNotFound}
	case status >= 500:
		return &core.ClientError{Op: op, Kind: kind, Message: serverMessage(body), Err: core.ErrServerRejected}
	case status >= 400:
		return &core.ClientError{Op: op, Kind: kind, Message: serverMessage(body), Err: core.ErrServerRejected}
	}
	return nil
}

func serverMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.ResponseMessage
}
