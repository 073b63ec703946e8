// Package order maintains the client-side order history and, for the
// delivery role, the set of orders assigned to the agent. Unlike the
// cart, orders are never mutated optimistically: a status flip the
// server did not confirm would misinform both the customer and the
// agent.
package order

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deliverly/deliverly-go/core"
	"github.com/deliverly/deliverly-go/resilience"
)

// Synchronizer keeps the local order list aligned with server truth.
// The fetch endpoint is keyed by the session role: customers see their
// own orders, delivery agents see assigned orders.
type Synchronizer struct {
	gateway  core.OrderGateway
	sessions core.SessionStore
	logger   core.Logger
	retry    *resilience.RetryConfig
	now      func() time.Time

	opMu sync.Mutex

	stateMu sync.RWMutex
	orders  []core.Order
	loading bool
	lastErr error
}

// NewSynchronizer creates an order synchronizer bound to a session
// store. Identity transitions clear the order list synchronously.
func NewSynchronizer(gateway core.OrderGateway, sessions core.SessionStore) *Synchronizer {
	s := &Synchronizer{
		gateway:  gateway,
		sessions: sessions,
		logger:   &core.NoOpLogger{},
		retry:    resilience.DefaultRetryConfig(),
		now:      time.Now,
	}
	sessions.OnChange(func(core.Identity, bool) {
		s.stateMu.Lock()
		s.orders = nil
		s.lastErr = nil
		s.stateMu.Unlock()
	})
	return s
}

// SetLogger configures the logger for this synchronizer.
func (s *Synchronizer) SetLogger(logger core.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetRetryConfig overrides the retry policy used on the fetch path.
func (s *Synchronizer) SetRetryConfig(cfg *resilience.RetryConfig) {
	if cfg != nil {
		s.retry = cfg
	}
}

// SetClock overrides the time source for delivery timestamps. Tests use
// this to pin the stamped date and time.
func (s *Synchronizer) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Orders returns a copy of the current order list, most recent first.
func (s *Synchronizer) Orders() []core.Order {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	out := make([]core.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Loading reports whether a refresh is in flight.
func (s *Synchronizer) Loading() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.loading
}

// LastError returns the error recorded by the most recent operation, or
// nil after a success.
func (s *Synchronizer) LastError() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastErr
}

// Refresh fetches the order list for the current identity and replaces
// the local list wholesale. The endpoint is chosen by role. An absent
// identity yields an empty list, not an error.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.refreshLocked(ctx)
}

// refreshLocked must be called with opMu held.
func (s *Synchronizer) refreshLocked(ctx context.Context) error {
	identity, ok := s.sessions.Identity()
	if !ok {
		s.stateMu.Lock()
		s.orders = nil
		s.lastErr = nil
		s.stateMu.Unlock()
		return nil
	}
	epoch := s.sessions.Epoch()

	s.setLoading(true)
	var orders []core.Order
	err := resilience.Retry(ctx, s.retry, func() error {
		var fetchErr error
		if identity.Role == core.RoleDelivery {
			orders, fetchErr = s.gateway.FetchOrdersForDeliveryAgent(ctx, identity)
		} else {
			orders, fetchErr = s.gateway.FetchOrdersForUser(ctx, identity)
		}
		return fetchErr
	})
	s.setLoading(false)

	if err != nil {
		s.recordError(err)
		if core.IsAuthError(err) {
			s.sessions.RequestLogout()
		}
		return err
	}

	if s.sessions.Epoch() != epoch {
		return &core.ClientError{Op: "order.Refresh", Kind: core.KindOrder, Err: core.ErrIdentityChanged}
	}

	sortByTimeDesc(orders)
	s.stateMu.Lock()
	s.orders = orders
	s.lastErr = nil
	s.stateMu.Unlock()
	return nil
}

// MarkDelivered transitions an order to Delivered on behalf of the
// delivery agent. The delivery date and time are stamped client-side at
// the moment of the call. There is no optimistic flip: the local list
// changes only through the refresh that follows server confirmation,
// which also picks up any other server-side changes such as newly
// assigned orders.
func (s *Synchronizer) MarkDelivered(ctx context.Context, orderID string) error {
	const op = "order.MarkDelivered"
	if orderID == "" {
		return &core.ClientError{Op: op, Kind: core.KindOrder,
			Err: fmt.Errorf("order id is required: %w", core.ErrValidation)}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	identity, ok := s.sessions.Identity()
	if !ok {
		return &core.ClientError{Op: op, Kind: core.KindOrder, ID: orderID, Err: core.ErrUnauthenticated}
	}
	if identity.Role != core.RoleDelivery {
		return &core.ClientError{Op: op, Kind: core.KindOrder, ID: orderID,
			Err: fmt.Errorf("role %q cannot update delivery status: %w", identity.Role, core.ErrValidation)}
	}
	epoch := s.sessions.Epoch()

	stamp := s.now()
	req := core.DeliveryStatusRequest{
		OrderID:      orderID,
		Status:       core.StatusDelivered,
		DeliveryDate: stamp.Format("2006-01-02"),
		DeliveryTime: stamp.Format("15:04"),
	}
	if err := s.gateway.UpdateDeliveryStatus(ctx, identity, req); err != nil {
		s.recordError(err)
		if core.IsAuthError(err) {
			s.sessions.RequestLogout()
		}
		return err
	}

	s.logger.Info("Order marked delivered", map[string]interface{}{
		"operation":     "order_deliver",
		"order_id":      orderID,
		"delivery_date": req.DeliveryDate,
	})

	if s.sessions.Epoch() != epoch {
		return &core.ClientError{Op: op, Kind: core.KindOrder, ID: orderID, Err: core.ErrIdentityChanged}
	}
	return s.refreshLocked(ctx)
}

// Append inserts newly confirmed orders at their sorted position. The
// checkout coordinator calls this after a successful submit so the
// history is current even before the next refresh.
func (s *Synchronizer) Append(orders ...core.Order) {
	if len(orders) == 0 {
		return
	}
	s.stateMu.Lock()
	s.orders = append(s.orders, orders...)
	sortByTimeDesc(s.orders)
	s.stateMu.Unlock()
}

func sortByTimeDesc(orders []core.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].OrderTime > orders[j].OrderTime
	})
}

func (s *Synchronizer) setLoading(v bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.loading = v
}

func (s *Synchronizer) recordError(err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastErr = err
}
