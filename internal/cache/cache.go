// Package cache provides a Redis-backed freshness cache for upstream
// weather API responses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the freshness window for upstream responses.
const DefaultTTL = time.Hour

// Cache stores marshaled upstream responses keyed by endpoint and coordinates.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Cache with the default 1-hour TTL.
func New(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: DefaultTTL}
}

// NewWithTTL constructs a Cache with a custom TTL (for tests).
func NewWithTTL(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get retrieves a cached payload. Returns nil, nil on a miss (not an error).
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return json.RawMessage(val), nil
}

// Set stores a payload under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, payload json.RawMessage) error {
	if len(payload) == 0 {
		return nil
	}
	if err := c.client.Set(ctx, key, []byte(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes the cached entry for key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}
