package ports

import (
	"context"
	"time"
)

// OperatorService authenticates the single operator allowed to run
// token remediation.
type OperatorService interface {
	Login(ctx context.Context, password string) (token string, expiresAt time.Time, err error)
	ValidateToken(token string) error
}
