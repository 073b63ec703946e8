package cart

import (
	"context"
	"sync"

	"github.com/deliverly/deliverly-go/core"
)

// MemoryCache is an in-process SnapshotCache. Suitable for single-process
// apps and tests; use RedisCache when snapshots should survive restarts.
type MemoryCache struct {
	mu        sync.RWMutex
	snapshots map[string]core.CartSnapshot
}

// NewMemoryCache creates an empty in-memory snapshot cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{snapshots: make(map[string]core.CartSnapshot)}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (core.CartSnapshot, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot, ok := c.snapshots[userID]
	if !ok {
		return core.CartSnapshot{}, false, nil
	}
	return snapshot.Clone(), true, nil
}

func (c *MemoryCache) Put(_ context.Context, userID string, snapshot core.CartSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[userID] = snapshot.Clone()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snapshots, userID)
	return nil
}
