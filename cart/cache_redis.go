package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deliverly/deliverly-go/core"
)

const cartCacheKeyPrefix = "deliverly:cart:"

// RedisCache is a SnapshotCache backed by Redis, so the last confirmed
// snapshot survives process restarts. Entries expire after the
// configured TTL; an expired entry simply means a cold start for that
// user.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis at redisURL and verifies the
// connection before returning.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, &core.ClientError{Op: "cart.NewRedisCache", Kind: core.KindCache,
			Err: fmt.Errorf("invalid redis URL: %w", err)}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &core.ClientError{Op: "cart.NewRedisCache", Kind: core.KindCache,
			Err: fmt.Errorf("redis connection failed: %w", err)}
	}
	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client. Used by tests and by
// callers sharing one connection pool across components.
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, userID string) (core.CartSnapshot, bool, error) {
	data, err := c.client.Get(ctx, cartCacheKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return core.CartSnapshot{}, false, nil
	}
	if err != nil {
		return core.CartSnapshot{}, false, &core.ClientError{Op: "cart.RedisCache.Get",
			Kind: core.KindCache, ID: userID, Err: err}
	}
	var snapshot core.CartSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return core.CartSnapshot{}, false, &core.ClientError{Op: "cart.RedisCache.Get",
			Kind: core.KindCache, ID: userID, Err: fmt.Errorf("corrupt cache entry: %w", err)}
	}
	return snapshot, true, nil
}

func (c *RedisCache) Put(ctx context.Context, userID string, snapshot core.CartSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return &core.ClientError{Op: "cart.RedisCache.Put", Kind: core.KindCache, ID: userID, Err: err}
	}
	if err := c.client.Set(ctx, cartCacheKeyPrefix+userID, data, c.ttl).Err(); err != nil {
		return &core.ClientError{Op: "cart.RedisCache.Put", Kind: core.KindCache, ID: userID, Err: err}
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cartCacheKeyPrefix+userID).Err(); err != nil {
		return &core.ClientError{Op: "cart.RedisCache.Delete", Kind: core.KindCache, ID: userID, Err: err}
	}
	return nil
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
