package ports

import (
	"context"

	"github.com/avatarctic/clauseguard/internal/core/domain/access"
)

// AccessTokenRepository persists hashed access token records.
type AccessTokenRepository interface {
	Save(ctx context.Context, secretHash string, rec *access.Record) error
	// Take atomically reads and deletes the record. found=false if absent.
	Take(ctx context.Context, secretHash string) (rec *access.Record, found bool, err error)
	Exists(ctx context.Context, secretHash string) (bool, error)
}

// AccessTokenService implements the single-use token lifecycle.
type AccessTokenService interface {
	Generate() (string, error)
	// Issue stores a fresh record. Errors must not be swallowed by callers.
	Issue(ctx context.Context, secret string) error
	// Consume returns true at most once per issued secret.
	Consume(ctx context.Context, secret string) bool
	Reactivate(ctx context.Context, secret string) bool
	Check(ctx context.Context, secret string) bool
}

// SessionTokenRepository maps a checkout session to the token minted for it
// so a polling client can recover it.
type SessionTokenRepository interface {
	// Remember stores the mapping unless one exists; it returns the token
	// that ends up mapped.
	Remember(ctx context.Context, sessionID, token string) (string, error)
	Recall(ctx context.Context, sessionID string) (token string, found bool, err error)
}
