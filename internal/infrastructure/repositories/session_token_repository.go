package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/ports"
	"github.com/avatarctic/clauseguard/internal/infrastructure/security"
)

const sessionTokenPrefix = "checkout_session"

// SessionTokenRepository keeps a sealed copy of the token minted for a
// checkout session so the poll endpoint can hand it back.
type SessionTokenRepository struct {
	store  ports.KeyValueStore
	sealer *security.Sealer
	ttl    time.Duration
	logger *logrus.Logger
}

var _ ports.SessionTokenRepository = (*SessionTokenRepository)(nil)

func NewSessionTokenRepository(store ports.KeyValueStore, sealer *security.Sealer, ttl time.Duration, logger *logrus.Logger) *SessionTokenRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionTokenRepository{store: store, sealer: sealer, ttl: ttl, logger: logger}
}

func (r *SessionTokenRepository) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", sessionTokenPrefix, sessionID)
}

// Remember maps sessionID to token unless another token already holds the
// mapping, in which case that token is returned instead. A mapping sealed
// under a previous key can never be recalled again, so it is replaced rather
// than left to make every later poll mint a new token.
func (r *SessionTokenRepository) Remember(ctx context.Context, sessionID, token string) (string, error) {
	sealed, err := r.sealer.Seal(token, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to seal session token: %w", err)
	}
	key := r.key(sessionID)
	wrote, err := r.store.SetNX(ctx, key, sealed, r.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to store session token: %w", err)
	}
	if wrote {
		return token, nil
	}

	existing, found, err := r.lookup(ctx, sessionID)
	switch {
	case err == nil && found:
		return existing, nil
	case err != nil && !errors.Is(err, security.ErrUnseal):
		return "", err
	}

	// Unreadable, or expired between the two commands: ours takes over.
	if err != nil && r.logger != nil {
		r.logger.WithField("session_id", sessionID).Warn("replacing session token sealed under another key")
	}
	ttl := r.ttl
	if remaining, terr := r.store.TTL(ctx, key); terr == nil && remaining > 0 {
		ttl = remaining
	}
	if err := r.store.Set(ctx, key, sealed, ttl); err != nil {
		return "", fmt.Errorf("failed to replace session token: %w", err)
	}
	return token, nil
}

// Recall returns the mapped token. A mapping that cannot be unsealed reads as
// absent; the next Remember replaces it.
func (r *SessionTokenRepository) Recall(ctx context.Context, sessionID string) (string, bool, error) {
	token, found, err := r.lookup(ctx, sessionID)
	if errors.Is(err, security.ErrUnseal) {
		if r.logger != nil {
			r.logger.WithField("session_id", sessionID).Warn("session token could not be unsealed; ignoring mapping")
		}
		return "", false, nil
	}
	return token, found, err
}

func (r *SessionTokenRepository) lookup(ctx context.Context, sessionID string) (string, bool, error) {
	sealed, ok, err := r.store.Get(ctx, r.key(sessionID))
	if err != nil {
		return "", false, fmt.Errorf("failed to read session token: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	token, err := r.sealer.Open(sealed, sessionID)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}
