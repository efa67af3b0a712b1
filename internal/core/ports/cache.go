package ports

import (
	"context"
	"time"
)

// Cache keeps finished analyses keyed by tier and contract digest so an
// identical resubmission skips the model call. Callers treat any error as a
// miss; the cache never decides whether a request is admitted.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value; a non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
