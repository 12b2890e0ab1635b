package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/eodledger/internal/domain"
)

const defaultCachePrefix = "eodledger:cache:"

// Cache implements usecase.Cache on plain Redis string keys.
type Cache struct {
	client *redis.Client
	prefix string
}

// NewCache creates a Cache whose keys live under eodledger:cache:.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, prefix: defaultCachePrefix}
}

// Get returns domain.ErrCacheMiss when the key is absent or expired.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", domain.ErrCacheMiss
	case err != nil:
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. A zero ttl keeps the key until evicted.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
