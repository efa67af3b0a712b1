package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/avatarctic/clauseguard/configs"
	"github.com/avatarctic/clauseguard/internal/core/domain/payment"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// StripeProvider implements ports.PaymentProvider with hosted Stripe Checkout.
type StripeProvider struct {
	api       *client.API
	priceID   string
	secret    string
	tolerance time.Duration
	logger    *logrus.Logger
}

var _ ports.PaymentProvider = (*StripeProvider)(nil)

// NewStripeProvider builds a provider; backends may be nil to use the public API.
func NewStripeProvider(cfg *configs.StripeConfig, backends *stripe.Backends, logger *logrus.Logger) *StripeProvider {
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &StripeProvider{
		api:       client.New(cfg.SecretKey, backends),
		priceID:   cfg.PriceID,
		secret:    cfg.WebhookSecret,
		tolerance: tolerance,
		logger:    logger,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, successURL, cancelURL string) (*payment.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		if p.logger != nil {
			p.logger.WithError(err).Error("stripe: failed to create checkout session")
		}
		return nil, fmt.Errorf("%w: %v", payment.ErrProviderFailure, err)
	}
	return toSession(s), nil
}

func (p *StripeProvider) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && (serr.HTTPStatusCode == http.StatusNotFound || serr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, payment.ErrSessionNotFound
		}
		if p.logger != nil {
			p.logger.WithField("session_id", id).WithError(err).Error("stripe: failed to retrieve checkout session")
		}
		return nil, fmt.Errorf("%w: %v", payment.ErrProviderFailure, err)
	}
	return toSession(s), nil
}

// ParseWebhook verifies the Stripe-Signature header over the raw payload
// before decoding anything from it.
func (p *StripeProvider) ParseWebhook(payload []byte, sigHeader string) (*payment.Event, error) {
	if p.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", payment.ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, p.secret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidSignature, err)
	}

	out := &payment.Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	switch out.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncPaymentSuccess:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Session = toSession(&s)
	}
	return out, nil
}

func toSession(s *stripe.CheckoutSession) *payment.Session {
	if s == nil {
		return nil
	}
	out := &payment.Session{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		URL:           s.URL,
		CustomerEmail: s.CustomerEmail,
	}
	if s.Created > 0 {
		out.CreatedAt = time.Unix(s.Created, 0)
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	return out
}
