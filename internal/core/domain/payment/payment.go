package payment

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrInvalidSessionID = errors.New("invalid checkout session id")
	ErrNotPaid          = errors.New("checkout session is not paid")
	ErrSessionStale     = errors.New("checkout session is too old")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrProviderFailure  = errors.New("payment provider request failed")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrTokenIssueFailed = errors.New("failed to issue access token")
)

// StatusPaid is the provider payment status that grants access.
const StatusPaid = "paid"

// Event types that can carry a completed payment.
const (
	EventCheckoutCompleted           = "checkout.session.completed"
	EventCheckoutAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
)

var sessionIDPattern = regexp.MustCompile(`^cs_(test|live)_[A-Za-z0-9]{10,200}$`)

// ValidSessionID reports whether id has the provider's checkout session shape.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Session is the subset of a hosted checkout session this service relies on.
type Session struct {
	ID            string
	PaymentStatus string
	CreatedAt     time.Time
	CustomerEmail string
	URL           string
}

func (s *Session) Paid() bool {
	return s != nil && s.PaymentStatus == StatusPaid
}

// Event is a verified provider notification. Session is nil for event types
// that do not describe a checkout session.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

// Confirmation is what a client receives after a verified payment.
type Confirmation struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}
