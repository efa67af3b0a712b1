package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// maxCachedValue bounds a single entry; a report larger than this is simply
// not cached.
const maxCachedValue = 1 << 20

// RedisCache stores finished analyses under "<namespace>:<key>".
type RedisCache struct {
	r         redis.Cmdable
	namespace string
}

var _ ports.Cache = (*RedisCache)(nil)

func NewRedisCache(r redis.Cmdable, namespace string) *RedisCache {
	return &RedisCache{r: r, namespace: namespace}
}

func (c *RedisCache) key(k string) string {
	if c.namespace == "" {
		return k
	}
	return c.namespace + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.r.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return b, true, nil
}

// Set writes value with ttl; a non-positive ttl stores without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if len(value) > maxCachedValue {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.r.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.r.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
