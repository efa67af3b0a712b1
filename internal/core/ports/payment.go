package ports

import (
	"context"

	"github.com/avatarctic/clauseguard/internal/core/domain/payment"
)

// PaymentProvider abstracts the hosted checkout provider.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, successURL, cancelURL string) (*payment.Session, error)
	GetSession(ctx context.Context, sessionID string) (*payment.Session, error)
	// ParseWebhook verifies the signature and decodes the event. It returns
	// payment.ErrInvalidSignature for tampered or stale payloads.
	ParseWebhook(payload []byte, signatureHeader string) (*payment.Event, error)
}

// PaymentService turns confirmed payments into access tokens.
type PaymentService interface {
	CreateCheckout(ctx context.Context) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string, meta RequestMeta) error
	VerifySession(ctx context.Context, sessionID string) (*payment.Confirmation, error)
}

// RequestMeta carries caller details used for audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
