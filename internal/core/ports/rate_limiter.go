package ports

import (
	"context"
	"time"

	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
)

// RateLimitRepository provides the single-command counter operations the
// limiter is built from. It abstracts storage (e.g., Redis).
type RateLimitRepository interface {
	// Count returns the current counter; ok=false if no window is open.
	Count(ctx context.Context, identifier string) (count int, ok bool, err error)
	// Open starts a new window with count=1 expiring after window.
	Open(ctx context.Context, identifier string, window time.Duration) error
	// Increment atomically adds one and returns the new count.
	Increment(ctx context.Context, identifier string) (int, error)
	// Remaining returns the window's remaining lifetime (ports.TTLMissing / TTLNoExpiry sentinels apply).
	Remaining(ctx context.Context, identifier string) (time.Duration, error)
	// Extend sets the window's expiry.
	Extend(ctx context.Context, identifier string, window time.Duration) error
}

// RateLimiterService admits or rejects requests per identifier using a fixed
// window counter. It never returns an error: store failures fail open.
type RateLimiterService interface {
	Check(ctx context.Context, identifier string, limit int, window time.Duration) ratelimit.Result
}
