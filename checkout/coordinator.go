// Package checkout drives the submit flow that turns the current cart
// into confirmed orders. Submission is a single client-visible action
// covering payment and order placement; the server decides how a cart
// becomes orders.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deliverly/deliverly-go/cart"
	"github.com/deliverly/deliverly-go/core"
	"github.com/deliverly/deliverly-go/order"
)

// State is the coordinator's submit lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Coordinator owns checkout submission. At most one submit is in flight
// at a time; a second Submit while one is outstanding fails fast instead
// of double-charging.
type Coordinator struct {
	gateway  core.OrderGateway
	sessions core.SessionStore
	cart     *cart.Synchronizer
	orders   *order.Synchronizer
	logger   core.Logger
	tracer   trace.Tracer

	inFlight atomic.Bool

	stateMu     sync.RWMutex
	state       State
	lastOrderID string
	lastErr     error
}

// NewCoordinator wires the coordinator to the synchronizers it refreshes
// after a confirmed submit.
func NewCoordinator(gateway core.OrderGateway, sessions core.SessionStore, cartSync *cart.Synchronizer, orderSync *order.Synchronizer) *Coordinator {
	c := &Coordinator{
		gateway:  gateway,
		sessions: sessions,
		cart:     cartSync,
		orders:   orderSync,
		logger:   &core.NoOpLogger{},
		tracer:   otel.Tracer("github.com/deliverly/deliverly-go/checkout"),
		state:    StateIdle,
	}
	sessions.OnChange(func(core.Identity, bool) {
		c.stateMu.Lock()
		c.state = StateIdle
		c.lastOrderID = ""
		c.lastErr = nil
		c.stateMu.Unlock()
	})
	return c
}

// SetLogger configures the logger for this coordinator.
func (c *Coordinator) SetLogger(logger core.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// State returns the current submit state.
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// LastOrderID returns the order id of the most recent successful submit.
func (c *Coordinator) LastOrderID() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastOrderID
}

// LastError returns the error recorded by the most recent submit, or nil.
func (c *Coordinator) LastError() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastErr
}

// Reset returns a settled coordinator to idle so the next checkout
// starts clean. It is a no-op while a submit is in flight.
func (c *Coordinator) Reset() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == StateSubmitting {
		return
	}
	c.state = StateIdle
	c.lastOrderID = ""
	c.lastErr = nil
}

// Submit places an order for the current cart. The amount charged is
// computed from the snapshot being submitted, never taken from the
// caller. Each attempt carries a fresh request id so the server can
// de-duplicate a retried submit.
//
// On success the order list is refreshed before the cart, so there is no
// window where the cart is empty but the new order is not yet visible.
func (c *Coordinator) Submit(ctx context.Context, payment core.PaymentDetails) (string, error) {
	const op = "checkout.Submit"

	if !c.inFlight.CompareAndSwap(false, true) {
		return "", &core.ClientError{Op: op, Kind: core.KindCheckout, Err: core.ErrSubmitInFlight}
	}
	defer c.inFlight.Store(false)

	identity, ok := c.sessions.Identity()
	if !ok {
		return "", c.fail(op, core.ErrUnauthenticated)
	}
	if !payment.Complete() {
		return "", c.fail(op, fmt.Errorf("incomplete card details: %w", core.ErrValidation))
	}
	snapshot := c.cart.Snapshot()
	if snapshot.Empty() {
		return "", c.fail(op, core.ErrEmptyCart)
	}

	epoch := c.sessions.Epoch()
	requestID := uuid.NewString()
	amount := snapshot.Total()

	c.setState(StateSubmitting, "", nil)

	ctx, span := c.tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.Float64("checkout.amount", amount),
		attribute.Int("checkout.lines", len(snapshot.Lines)),
		attribute.String("checkout.request_id", requestID),
	))
	defer span.End()

	orderID, err := c.gateway.CreateOrder(ctx, identity, core.CreateOrderRequest{
		Payment:   payment,
		Amount:    amount,
		Cart:      snapshot.Lines,
		RequestID: requestID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		if core.IsAuthError(err) {
			c.sessions.RequestLogout()
		}
		c.setState(StateFailed, "", err)
		c.logger.Error("Checkout submit failed", map[string]interface{}{
			"operation":  "checkout_submit",
			"request_id": requestID,
			"error":      err.Error(),
		})
		return "", err
	}

	span.SetAttributes(attribute.String("checkout.order_id", orderID))
	span.SetStatus(codes.Ok, "")

	if c.sessions.Epoch() != epoch {
		// The user changed before the confirmation landed. The order
		// belongs to the previous session; leave the new session's
		// synchronizers alone.
		return orderID, &core.ClientError{Op: op, Kind: core.KindCheckout, Err: core.ErrIdentityChanged}
	}

	c.setState(StateSucceeded, orderID, nil)
	c.logger.Info("Checkout confirmed", map[string]interface{}{
		"operation":  "checkout_submit",
		"order_id":   orderID,
		"request_id": requestID,
		"amount":     amount,
	})

	// Both refreshes are reconciliation, not part of the submit verdict.
	// Their failures surface through each synchronizer's LastError.
	if refreshErr := c.orders.Refresh(ctx); refreshErr != nil {
		c.logger.Warn("Order refresh after checkout failed", map[string]interface{}{
			"operation": "checkout_reconcile",
			"error":     refreshErr.Error(),
		})
	}
	if refreshErr := c.cart.Refresh(ctx); refreshErr != nil {
		c.logger.Warn("Cart refresh after checkout failed", map[string]interface{}{
			"operation": "checkout_reconcile",
			"error":     refreshErr.Error(),
		})
	}
	return orderID, nil
}

func (c *Coordinator) fail(op string, err error) error {
	wrapped := err
	if _, ok := err.(*core.ClientError); !ok {
		wrapped = &core.ClientError{Op: op, Kind: core.KindCheckout, Err: err}
	}
	c.setState(StateFailed, "", wrapped)
	return wrapped
}

func (c *Coordinator) setState(state State, orderID string, err error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
	c.lastOrderID = orderID
	c.lastErr = err
}
