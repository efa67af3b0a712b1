package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/access"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

const (
	// accessTokenPrefix prefixes store keys for hashed access tokens.
	// It's a static prefix and not a credential.
	accessTokenPrefix = "access_token" //nolint:gosec
)

// AccessTokenRepository stores access token records keyed by secret hash.
type AccessTokenRepository struct {
	store  ports.KeyValueStore
	ttl    time.Duration
	logger *logrus.Logger
}

var _ ports.AccessTokenRepository = (*AccessTokenRepository)(nil)

func NewAccessTokenRepository(store ports.KeyValueStore, ttl time.Duration, logger *logrus.Logger) *AccessTokenRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AccessTokenRepository{store: store, ttl: ttl, logger: logger}
}

func (r *AccessTokenRepository) key(secretHash string) string {
	return fmt.Sprintf("%s:%s", accessTokenPrefix, secretHash)
}

// Save overwrites any existing record and resets its TTL.
func (r *AccessTokenRepository) Save(ctx context.Context, secretHash string, rec *access.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal access token record: %w", err)
	}
	if err := r.store.Set(ctx, r.key(secretHash), string(b), r.ttl); err != nil {
		return fmt.Errorf("failed to store access token record: %w", err)
	}
	return nil
}

func (r *AccessTokenRepository) Take(ctx context.Context, secretHash string) (*access.Record, bool, error) {
	raw, ok, err := r.store.GetDel(ctx, r.key(secretHash))
	if err != nil {
		return nil, false, fmt.Errorf("failed to take access token record: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec access.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// The record is gone either way; a malformed value still counted as present.
		if r.logger != nil {
			r.logger.WithFields(logrus.Fields{"token_hash": secretHash[:8]}).WithError(err).Warn("malformed access token record consumed")
		}
		return &access.Record{}, true, nil
	}
	return &rec, true, nil
}

func (r *AccessTokenRepository) Exists(ctx context.Context, secretHash string) (bool, error) {
	_, ok, err := r.store.Get(ctx, r.key(secretHash))
	if err != nil {
		return false, fmt.Errorf("failed to read access token record: %w", err)
	}
	return ok, nil
}
