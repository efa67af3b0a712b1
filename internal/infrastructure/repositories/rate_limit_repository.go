package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/avatarctic/clauseguard/internal/core/ports"
)

const rateLimitPrefix = "ratelimit"

// RateLimitRepository implements fixed window counter storage on the key-value store.
type RateLimitRepository struct {
	store ports.KeyValueStore
}

var _ ports.RateLimitRepository = (*RateLimitRepository)(nil)

func NewRateLimitRepository(store ports.KeyValueStore) *RateLimitRepository {
	return &RateLimitRepository{store: store}
}

func (repo *RateLimitRepository) key(identifier string) string {
	return fmt.Sprintf("%s:%s", rateLimitPrefix, identifier)
}

func (repo *RateLimitRepository) Count(ctx context.Context, identifier string) (int, bool, error) {
	raw, ok, err := repo.store.Get(ctx, repo.key(identifier))
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("malformed rate limit counter %q: %w", raw, err)
	}
	return n, true, nil
}

func (repo *RateLimitRepository) Open(ctx context.Context, identifier string, window time.Duration) error {
	return repo.store.Set(ctx, repo.key(identifier), "1", window)
}

func (repo *RateLimitRepository) Increment(ctx context.Context, identifier string) (int, error) {
	n, err := repo.store.Incr(ctx, repo.key(identifier))
	return int(n), err
}

func (repo *RateLimitRepository) Remaining(ctx context.Context, identifier string) (time.Duration, error) {
	return repo.store.TTL(ctx, repo.key(identifier))
}

func (repo *RateLimitRepository) Extend(ctx context.Context, identifier string, window time.Duration) error {
	return repo.store.Expire(ctx, repo.key(identifier), window)
}
