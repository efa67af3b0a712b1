package ports

import (
	"context"
	"time"
)

// Sentinel TTL values reported by KeyValueStore.TTL.
const (
	TTLMissing  time.Duration = -2
	TTLNoExpiry time.Duration = -1
)

// KeyValueStore is the only shared mutable state of the service. Every method
// is a single atomic store command; there are no multi-key transactions.
type KeyValueStore interface {
	// Get returns ok=false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes only if the key is absent and reports whether it wrote.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	// TTL returns the remaining lifetime, or TTLMissing / TTLNoExpiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// GetDel reads and removes the key in one step. At most one concurrent
	// caller observes ok=true for a given stored value.
	GetDel(ctx context.Context, key string) (value string, ok bool, err error)
	Ping(ctx context.Context) error
}
