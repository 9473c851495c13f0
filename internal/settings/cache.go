package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is a read-through Redis cache for raw rule documents. A stale
// document may be served for up to the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a cache around an existing Redis client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("settings:%s:%s", tenantID, key)
}

// Get returns the cached document, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, tenantID uuid.UUID, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, cacheKey(tenantID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores the document with the configured TTL.
func (c *Cache) Set(ctx context.Context, tenantID uuid.UUID, key string, value []byte) error {
	return c.client.Set(ctx, cacheKey(tenantID, key), value, c.ttl).Err()
}

// Invalidate drops a cached document after a settings write.
func (c *Cache) Invalidate(ctx context.Context, tenantID uuid.UUID, key string) error {
	return c.client.Del(ctx, cacheKey(tenantID, key)).Err()
}
