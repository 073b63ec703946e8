// Package cart owns the authoritative client-side cart snapshot and keeps
// it consistent with the remote service. Mutations are applied
// optimistically; any failure whose outcome is uncertain forces a refresh
// so the snapshot is never silently stale.
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deliverly/deliverly-go/core"
	"github.com/deliverly/deliverly-go/resilience"
)

// Synchronizer reconciles the local cart snapshot with server truth.
//
// Concurrency model: opMu serializes reconciling operations so only one
// is in flight per cart; a mutation issued while another is outstanding
// queues behind it and can never race the failure-driven refresh of its
// predecessor. stateMu guards the published snapshot, which readers get
// as a copy.
type Synchronizer struct {
	gateway  core.CartGateway
	sessions core.SessionStore
	cache    core.SnapshotCache
	logger   core.Logger
	retry    *resilience.RetryConfig

	opMu sync.Mutex

	stateMu  sync.RWMutex
	snapshot core.CartSnapshot
	loading  bool
	lastErr  error
	lastUser string
}

// NewSynchronizer creates a cart synchronizer bound to a session store.
// Identity transitions clear the snapshot synchronously, so a user switch
// never shows the previous user's cart, even transiently.
func NewSynchronizer(gateway core.CartGateway, sessions core.SessionStore) *Synchronizer {
	s := &Synchronizer{
		gateway:  gateway,
		sessions: sessions,
		logger:   &core.NoOpLogger{},
		retry:    resilience.DefaultRetryConfig(),
	}
	sessions.OnChange(func(identity core.Identity, active bool) {
		s.handleIdentityChange(identity, active)
	})
	return s
}

// SetLogger configures the logger for this synchronizer.
func (s *Synchronizer) SetLogger(logger core.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetCache installs a snapshot read-cache holding the last
// server-confirmed snapshot per user.
func (s *Synchronizer) SetCache(cache core.SnapshotCache) {
	s.cache = cache
}

// SetRetryConfig overrides the retry policy used on the fetch path.
func (s *Synchronizer) SetRetryConfig(cfg *resilience.RetryConfig) {
	if cfg != nil {
		s.retry = cfg
	}
}

// Snapshot returns a copy of the current cart snapshot.
func (s *Synchronizer) Snapshot() core.CartSnapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snapshot.Clone()
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

// CachedSnapshot returns the last server-confirmed snapshot for the
// current user from the read-cache. It is a render-before-refresh
// affordance and never a substitute for Refresh.
func (s *Synchronizer) CachedSnapshot(ctx context.Context) (core.CartSnapshot, bool) {
	if s.cache == nil {
		return core.CartSnapshot{}, false
	}
	identity, ok := s.sessions.Identity()
	if !ok {
		return core.CartSnapshot{}, false
	}
	snapshot, found, err := s.cache.Get(ctx, identity.UserID)
	if err != nil {
		s.logger.Debug("Snapshot cache lookup failed", map[string]interface{}{
			"operation": "cart_cache_get",
			"user_id":   identity.UserID,
			"error":     err.Error(),
		})
		return core.CartSnapshot{}, false
	}
	return snapshot, found
}

// Refresh fetches the authoritative cart and replaces the snapshot
// wholesale. An absent identity yields an empty snapshot, not an error:
// an unauthenticated user has a conceptually empty cart.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.refreshLocked(ctx)
}

// refreshLocked must be called with opMu held.
func (s *Synchronizer) refreshLocked(ctx context.Context) error {
	identity, ok := s.sessions.Identity()
	if !ok {
		s.replace(core.CartSnapshot{}, nil)
		return nil
	}
	epoch := s.sessions.Epoch()

	s.setLoading(true)
	var lines []core.CartLine
	err := resilience.Retry(ctx, s.retry, func() error {
		var fetchErr error
		lines, fetchErr = s.gateway.FetchCart(ctx, identity)
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
		// Identity changed while the fetch was in flight. The change
		// listener already reset the snapshot; this response belongs to
		// the old session and must not be applied.
		return &core.ClientError{Op: "cart.Refresh", Kind: core.KindCart, Err: core.ErrIdentityChanged}
	}

	snapshot := core.CartSnapshot{Lines: lines}
	s.replace(snapshot, nil)
	s.storeCache(ctx, identity.UserID, snapshot)
	return nil
}

// Add puts quantity of a food into the cart. The server assigns the line
// id and is authoritative for price-at-add-time, so a successful add is
// followed by a refresh rather than a locally synthesized line. On
// failure the snapshot is left unchanged.
func (s *Synchronizer) Add(ctx context.Context, food core.FoodSnapshot, quantity int) error {
	const op = "cart.Add"
	if food.ID == "" {
		return &core.ClientError{Op: op, Kind: core.KindCart,
			Err: fmt.Errorf("food id is required: %w", core.ErrValidation)}
	}
	if quantity < 1 {
		return &core.ClientError{Op: op, Kind: core.KindCart,
			Err: fmt.Errorf("quantity must be at least 1, got %d: %w", quantity, core.ErrValidation)}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	identity, ok := s.sessions.Identity()
	if !ok {
		return &core.ClientError{Op: op, Kind: core.KindCart, Err: core.ErrUnauthenticated}
	}
	epoch := s.sessions.Epoch()

	cartID, err := s.gateway.AddCartLine(ctx, identity, food.ID, quantity)
	if err != nil {
		s.recordError(err)
		if core.IsAuthError(err) {
			s.sessions.RequestLogout()
		}
		return err
	}

	s.logger.Debug("Cart line added", map[string]interface{}{
		"operation": "cart_add",
		"cart_id":   cartID,
		"food_id":   food.ID,
		"quantity":  quantity,
	})

	if s.sessions.Epoch() != epoch {
		return &core.ClientError{Op: op, Kind: core.KindCart, Err: core.ErrIdentityChanged}
	}
	return s.refreshLocked(ctx)
}

// UpdateQuantity sets a line's quantity, optimistically first. A quantity
// of zero or less is a removal, not an update. If the server call fails
// the optimistic value is discarded by a forced refresh, so the snapshot
// settles on server truth.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, cartID string, newQuantity int) error {
	if newQuantity <= 0 {
		return s.Remove(ctx, cartID)
	}

	const op = "cart.UpdateQuantity"
	s.opMu.Lock()
	defer s.opMu.Unlock()

	identity, ok := s.sessions.Identity()
	if !ok {
		return &core.ClientError{Op: op, Kind: core.KindCart, ID: cartID, Err: core.ErrUnauthenticated}
	}
	epoch := s.sessions.Epoch()

	prev, found := s.applyQuantity(cartID, newQuantity)
	if !found {
		return &core.ClientError{Op: op, Kind: core.KindCart, ID: cartID, Err: core.ErrNotFound}
	}

	err := s.gateway.UpdateCartLine(ctx, identity, cartID, newQuantity)
	if err == nil {
		if s.sessions.Epoch() != epoch {
			return &core.ClientError{Op: op, Kind: core.KindCart, ID: cartID, Err: core.ErrIdentityChanged}
		}
		s.recordError(nil)
		s.storeCache(ctx, identity.UserID, s.Snapshot())
		return nil
	}

	s.recordError(err)
	if core.IsAuthError(err) {
		s.sessions.RequestLogout()
		return err
	}
	if s.sessions.Epoch() != epoch {
		return err
	}

	s.logger.Warn("Quantity update failed, reconciling", map[string]interface{}{
		"operation":     "cart_update_reconcile",
		"cart_id":       cartID,
		"from_quantity": prev,
		"to_quantity":   newQuantity,
		"error":         err.Error(),
	})
	if refreshErr := s.refreshLocked(ctx); refreshErr != nil {
		return fmt.Errorf("update failed (%v) and reconciliation failed: %w", err, refreshErr)
	}
	return err
}

// Remove filters the line out optimistically, then issues the delete. On
// failure the snapshot is reconciled by a forced refresh: the line is
// never left removed locally while still present server-side, nor the
// other way around.
func (s *Synchronizer) Remove(ctx context.Context, cartID string) error {
	const op = "cart.Remove"
	s.opMu.Lock()
	defer s.opMu.Unlock()

	identity, ok := s.sessions.Identity()
	if !ok {
		return &core.ClientError{Op: op, Kind: core.KindCart, ID: cartID, Err: core.ErrUnauthenticated}
	}
	epoch := s.sessions.Epoch()

	if !s.dropLine(cartID) {
		return &core.ClientError{Op: op, Kind: core.KindCart, ID: cartID, Err: core.ErrNotFound}
	}

	err := s.gateway.DeleteCartLine(ctx, identity, cartID)
	if err == nil {
		if s.sessions.Epoch() != epoch {
			return &core.ClientError{Op: op, Kind: core.KindCart, ID: cartID, Err: core.ErrIdentityChanged}
		}
		s.recordError(nil)
		s.storeCache(ctx, identity.UserID, s.Snapshot())
		return nil
	}

	s.recordError(err)
	if core.IsAuthError(err) {
		s.sessions.RequestLogout()
		return err
	}
	if s.sessions.Epoch() != epoch {
		return err
	}

	s.logger.Warn("Cart delete failed, reconciling", map[string]interface{}{
		"operation": "cart_remove_reconcile",
		"cart_id":   cartID,
		"error":     err.Error(),
	})
	if refreshErr := s.refreshLocked(ctx); refreshErr != nil {
		return fmt.Errorf("remove failed (%v) and reconciliation failed: %w", err, refreshErr)
	}
	return err
}

func (s *Synchronizer) handleIdentityChange(identity core.Identity, active bool) {
	s.stateMu.Lock()
	prevUser := s.lastUser
	s.snapshot = core.CartSnapshot{}
	s.lastErr = nil
	if active {
		s.lastUser = identity.UserID
	} else {
		s.lastUser = ""
	}
	s.stateMu.Unlock()

	if s.cache != nil && prevUser != "" && prevUser != identity.UserID {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Delete(ctx, prevUser); err != nil {
			s.logger.Debug("Snapshot cache cleanup failed", map[string]interface{}{
				"operation": "cart_cache_delete",
				"user_id":   prevUser,
				"error":     err.Error(),
			})
		}
	}
}

// applyQuantity sets the optimistic quantity and returns the previous
// value.
func (s *Synchronizer) applyQuantity(cartID string, quantity int) (int, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	for i := range s.snapshot.Lines {
		if s.snapshot.Lines[i].CartID == cartID {
			prev := s.snapshot.Lines[i].Quantity
			s.snapshot.Lines[i].Quantity = quantity
			return prev, true
		}
	}
	return 0, false
}

func (s *Synchronizer) dropLine(cartID string) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	for i := range s.snapshot.Lines {
		if s.snapshot.Lines[i].CartID == cartID {
			s.snapshot.Lines = append(s.snapshot.Lines[:i:i], s.snapshot.Lines[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Synchronizer) replace(snapshot core.CartSnapshot, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.snapshot = snapshot
	s.lastErr = err
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

func (s *Synchronizer) storeCache(ctx context.Context, userID string, snapshot core.CartSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, userID, snapshot); err != nil {
		s.logger.Debug("Snapshot cache store failed", map[string]interface{}{
			"operation": "cart_cache_put",
			"user_id":   userID,
			"error":     err.Error(),
		})
	}
}
