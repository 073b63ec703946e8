package session

import (
	"context"
	"sync"

	"github.com/deliverly/deliverly-go/core"
)

// MemoryPersistence keeps the identity in process memory. It is the
// default backend and the one tests use.
type MemoryPersistence struct {
	mu       sync.RWMutex
	identity core.Identity
	present  bool
}

// NewMemoryPersistence creates an empty in-memory persistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{}
}

// Load returns the stored identity, if any.
func (p *MemoryPersistence) Load(ctx context.Context) (core.Identity, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity, p.present, nil
}

// Save stores the identity.
func (p *MemoryPersistence) Save(ctx context.Context, identity core.Identity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = identity
	p.present = true
	return nil
}

// Clear removes the stored identity.
func (p *MemoryPersistence) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = core.Identity{}
	p.present = false
	return nil
}
