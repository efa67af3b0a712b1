package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/access"
	"github.com/avatarctic/clauseguard/internal/core/domain/audit"
	"github.com/avatarctic/clauseguard/internal/core/domain/payment"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// PaymentConfig groups checkout parameters.
type PaymentConfig struct {
	BaseURL       string
	SessionMaxAge time.Duration
	TokenTTL      time.Duration
}

// PaymentService bridges confirmed payments to access token issuance. Both the
// webhook and the poll path may mint a token for the same payment; a few
// duplicates per payment are accepted instead of exactly-once bookkeeping.
type PaymentService struct {
	provider ports.PaymentProvider
	tokens   ports.AccessTokenService
	sessions ports.SessionTokenRepository
	mailer   ports.ReceiptMailer
	audit    ports.AuditService
	metrics  ports.Metrics
	cfg      PaymentConfig
	logger   *logrus.Logger
	now      func() time.Time
}

var _ ports.PaymentService = (*PaymentService)(nil)

// PaymentDeps groups the collaborators of PaymentService.
type PaymentDeps struct {
	Provider ports.PaymentProvider
	Tokens   ports.AccessTokenService
	Sessions ports.SessionTokenRepository
	Mailer   ports.ReceiptMailer
	Audit    ports.AuditService
	Metrics  ports.Metrics
}

func NewPaymentService(deps PaymentDeps, cfg *PaymentConfig, logger *logrus.Logger) *PaymentService {
	c := PaymentConfig{SessionMaxAge: 24 * time.Hour, TokenTTL: 24 * time.Hour}
	if cfg != nil {
		c.BaseURL = cfg.BaseURL
		if cfg.SessionMaxAge > 0 {
			c.SessionMaxAge = cfg.SessionMaxAge
		}
		if cfg.TokenTTL > 0 {
			c.TokenTTL = cfg.TokenTTL
		}
	}
	return &PaymentService{
		provider: deps.Provider,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		mailer:   deps.Mailer,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		cfg:      c,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *PaymentService) CreateCheckout(ctx context.Context) (string, error) {
	success := s.cfg.BaseURL + "/success?session_id={CHECKOUT_SESSION_ID}"
	cancel := s.cfg.BaseURL + "/"
	sess, err := s.provider.CreateCheckoutSession(ctx, success, cancel)
	if err != nil {
		s.upstreamError("create_session")
		return "", err
	}
	if sess == nil || sess.URL == "" {
		s.upstreamError("create_session")
		return "", fmt.Errorf("%w: checkout session has no url", payment.ErrProviderFailure)
	}
	if s.logger != nil {
		s.logger.WithField("session_id", sess.ID).Info("checkout session created")
	}
	return sess.URL, nil
}

// HandleWebhook verifies the notification before touching any state.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string, meta ports.RequestMeta) error {
	event, err := s.provider.ParseWebhook(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			s.observeWebhook("unknown", "invalid_signature")
			if s.logger != nil {
				s.logger.WithFields(logrus.Fields{"ip": meta.IPAddress}).WithError(err).Warn("webhook signature verification failed")
			}
			s.record(ctx, audit.ActionWebhookSignatureFailure, "", map[string]any{"reason": err.Error()}, meta)
		}
		return err
	}

	switch event.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncPaymentSuccess:
	default:
		s.observeWebhook(event.Type, "ignored")
		if s.logger != nil {
			s.logger.WithFields(logrus.Fields{"event_id": event.ID, "type": event.Type}).Debug("ignoring webhook event")
		}
		return nil
	}

	if !event.Session.Paid() {
		// Delayed payment methods complete later via async_payment_succeeded.
		s.observeWebhook(event.Type, "unpaid")
		return nil
	}

	token, err := s.mint(ctx, event.Session.ID)
	if err != nil {
		s.observeWebhook(event.Type, "error")
		return err
	}

	if email := event.Session.CustomerEmail; email != "" && s.mailer != nil {
		if err := s.mailer.SendAccessToken(ctx, email, token); err != nil && s.logger != nil {
			s.logger.WithFields(logrus.Fields{"session_id": event.Session.ID}).WithError(err).Warn("failed to email access token receipt")
		}
	}

	s.observeWebhook(event.Type, "processed")
	s.record(ctx, audit.ActionWebhookProcessed, event.Session.ID, map[string]any{"event_id": event.ID, "token_hash": access.LogFragment(token)}, meta)
	return nil
}

// VerifySession is the polling fallback for clients whose webhook-minted token
// has not reached them. Rate limiting happens in front of this call.
func (s *PaymentService) VerifySession(ctx context.Context, sessionID string) (*payment.Confirmation, error) {
	if !payment.ValidSessionID(sessionID) {
		return nil, payment.ErrInvalidSessionID
	}

	if s.sessions != nil {
		token, found, err := s.sessions.Recall(ctx, sessionID)
		if err != nil && s.logger != nil {
			s.logger.WithField("session_id", sessionID).WithError(err).Warn("session token lookup failed; falling back to provider")
		}
		if found {
			return s.confirmation(token), nil
		}
	}

	sess, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, payment.ErrSessionNotFound) {
			s.upstreamError("get_session")
		}
		return nil, err
	}
	if !sess.Paid() {
		return nil, payment.ErrNotPaid
	}
	if s.now().Sub(sess.CreatedAt) > s.cfg.SessionMaxAge {
		return nil, payment.ErrSessionStale
	}

	token, err := s.mint(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.confirmation(token), nil
}

// mint issues a fresh token and records the session mapping, returning the
// mapped token. Issue errors are hard failures; the mapping is best effort.
func (s *PaymentService) mint(ctx context.Context, sessionID string) (string, error) {
	token, err := s.tokens.Generate()
	if err != nil {
		return "", fmt.Errorf("%w: %v", payment.ErrTokenIssueFailed, err)
	}
	if err := s.tokens.Issue(ctx, token); err != nil {
		if s.logger != nil {
			s.logger.WithField("session_id", sessionID).WithError(err).Error("paid session could not be granted a token")
		}
		return "", fmt.Errorf("%w: %v", payment.ErrTokenIssueFailed, err)
	}
	s.record(ctx, audit.ActionTokenIssued, sessionID, map[string]any{"token_hash": access.LogFragment(token)}, ports.RequestMeta{})

	if s.sessions == nil {
		return token, nil
	}
	// A concurrent mint for the same session may have mapped first; hand out
	// its token so every caller converges on one.
	winner, err := s.sessions.Remember(ctx, sessionID, token)
	if err != nil {
		if s.logger != nil {
			s.logger.WithField("session_id", sessionID).WithError(err).Warn("failed to remember session token")
		}
		return token, nil
	}
	return winner, nil
}

func (s *PaymentService) confirmation(token string) *payment.Confirmation {
	return &payment.Confirmation{AccessToken: token, ExpiresIn: int64(s.cfg.TokenTTL / time.Second)}
}

func (s *PaymentService) record(ctx context.Context, action audit.Action, subject string, details any, meta ports.RequestMeta) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, &audit.RecordRequest{Action: action, Subject: subject, Details: details, IPAddress: meta.IPAddress, UserAgent: meta.UserAgent})
}

func (s *PaymentService) observeWebhook(eventType, result string) {
	if s.metrics != nil {
		s.metrics.ObserveWebhookEvent(eventType, result)
	}
}

func (s *PaymentService) upstreamError(kind string) {
	if s.metrics != nil {
		s.metrics.ObserveUpstreamError("payment", kind)
	}
}
