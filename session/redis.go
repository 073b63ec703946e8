package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deliverly/deliverly-go/core"
)

const sessionKey = "deliverly:session"

// RedisPersistence stores the identity in Redis so a session survives
// process restarts and can be shared by cooperating client instances.
type RedisPersistence struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisPersistence connects to Redis and verifies the connection.
func NewRedisPersistence(redisURL string, ttl time.Duration) (*RedisPersistence, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPersistence{client: client, key: sessionKey, ttl: ttl}, nil
}

// NewRedisPersistenceWithClient wraps an existing client, mainly for
// tests and hosts that manage their own Redis connection.
func NewRedisPersistenceWithClient(client *redis.Client, ttl time.Duration) *RedisPersistence {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPersistence{client: client, key: sessionKey, ttl: ttl}
}

// Load returns the stored identity, if any.
func (p *RedisPersistence) Load(ctx context.Context) (core.Identity, bool, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.Identity{}, false, nil
	}
	if err != nil {
		return core.Identity{}, false, fmt.Errorf("load session: %w", err)
	}
	var identity core.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return core.Identity{}, false, fmt.Errorf("decode session: %w", err)
	}
	return identity, true, nil
}

// Save stores the identity with the configured TTL.
func (p *RedisPersistence) Save(ctx context.Context, identity core.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored identity.
func (p *RedisPersistence) Clear(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *RedisPersistence) Close() error {
	return p.client.Close()
}
