// Package session owns the authenticated identity and its lifecycle. The
// manager is the only component allowed to mutate identity; everything
// else reads it and, at worst, requests a logout.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deliverly/deliverly-go/core"
)

// Persistence stores the identity across client restarts.
type Persistence interface {
	Load(ctx context.Context) (core.Identity, bool, error)
	Save(ctx context.Context, identity core.Identity) error
	Clear(ctx context.Context) error
}

// Manager implements core.SessionStore. Every identity transition (login,
// logout, user switch) bumps the epoch and notifies listeners
// synchronously, so dependent stores are cleared before any response
// captured under the old identity can be applied.
type Manager struct {
	auth    core.AuthGateway
	persist Persistence
	logger  core.Logger

	mu        sync.Mutex
	identity  core.Identity
	active    bool
	epoch     uint64
	listeners []func(core.Identity, bool)
}

// NewManager creates a session manager. auth may be nil when tokens are
// obtained externally and handed over via SetIdentity.
func NewManager(auth core.AuthGateway, persist Persistence, logger core.Logger) *Manager {
	if persist == nil {
		persist = NewMemoryPersistence()
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Manager{auth: auth, persist: persist, logger: logger}
}

// Restore loads a persisted identity, if any. Call once at startup.
func (m *Manager) Restore(ctx context.Context) error {
	identity, ok, err := m.persist.Load(ctx)
	if err != nil {
		return &core.ClientError{Op: "session.Restore", Kind: core.KindSession, Err: err}
	}
	if !ok {
		return nil
	}
	m.transition(identity, true)
	return nil
}

// Identity returns the current identity; ok is false without a session.
func (m *Manager) Identity() (core.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.active
}

// Epoch returns the identity generation counter.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// OnChange registers a listener invoked synchronously on every identity
// transition. Listeners must not call back into the manager.
func (m *Manager) OnChange(fn func(identity core.Identity, active bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Login authenticates against the remote API and installs the resulting
// identity.
func (m *Manager) Login(ctx context.Context, email, password string, role core.Role) (core.Identity, error) {
	if m.auth == nil {
		return core.Identity{}, &core.ClientError{
			Op:   "session.Login",
			Kind: core.KindSession,
			Err:  fmt.Errorf("no auth gateway configured: %w", core.ErrValidation),
		}
	}
	identity, err := m.auth.Login(ctx, email, password, role)
	if err != nil {
		return core.Identity{}, err
	}

	m.transition(identity, true)
	if err := m.persist.Save(ctx, identity); err != nil {
		m.logger.Warn("Failed to persist session", map[string]interface{}{
			"operation": "session_persist",
			"user_id":   identity.UserID,
			"error":     err.Error(),
		})
	}
	m.logger.Info("Session started", map[string]interface{}{
		"operation": "session_login",
		"user_id":   identity.UserID,
		"role":      string(identity.Role),
	})
	return identity, nil
}

// SetIdentity installs an identity obtained outside the manager, e.g. a
// token minted by a host application.
func (m *Manager) SetIdentity(ctx context.Context, identity core.Identity) error {
	if !identity.Valid() {
		return &core.ClientError{
			Op:   "session.SetIdentity",
			Kind: core.KindSession,
			Err:  fmt.Errorf("identity requires user id and token: %w", core.ErrValidation),
		}
	}
	m.transition(identity, true)
	if err := m.persist.Save(ctx, identity); err != nil {
		m.logger.Warn("Failed to persist session", map[string]interface{}{
			"operation": "session_persist",
			"user_id":   identity.UserID,
			"error":     err.Error(),
		})
	}
	return nil
}

// Logout tears the session down and clears persistence.
func (m *Manager) Logout(ctx context.Context) error {
	m.transition(core.Identity{}, false)
	if err := m.persist.Clear(ctx); err != nil {
		return &core.ClientError{Op: "session.Logout", Kind: core.KindSession, Err: err}
	}
	m.logger.Info("Session ended", map[string]interface{}{
		"operation": "session_logout",
	})
	return nil
}

// RequestLogout is the path components take when the server stops
// accepting the token. Persistence cleanup is best-effort with its own
// deadline since the caller usually has none to spare.
func (m *Manager) RequestLogout() {
	m.transition(core.Identity{}, false)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.persist.Clear(ctx); err != nil {
			m.logger.Warn("Failed to clear persisted session", map[string]interface{}{
				"operation": "session_clear",
				"error":     err.Error(),
			})
		}
	}()
	m.logger.Info("Logout requested", map[string]interface{}{
		"operation": "session_logout_requested",
	})
}

// transition swaps the identity, bumps the epoch, and notifies listeners.
// The epoch is bumped before listeners run so any in-flight operation
// comparing epochs sees the change.
func (m *Manager) transition(identity core.Identity, active bool) {
	m.mu.Lock()
	m.identity = identity
	m.active = active
	m.epoch++
	listeners := make([]func(core.Identity, bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(identity, active)
	}
}
