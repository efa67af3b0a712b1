package services_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/clauseguard/configs"
	impl "github.com/avatarctic/clauseguard/internal/application/services"
	"github.com/avatarctic/clauseguard/internal/core/domain/audit"
	"github.com/avatarctic/clauseguard/internal/core/domain/payment"
	"github.com/avatarctic/clauseguard/internal/core/ports"
	"github.com/avatarctic/clauseguard/internal/infrastructure/billing"
	cgredis "github.com/avatarctic/clauseguard/internal/infrastructure/redis"
	"github.com/avatarctic/clauseguard/internal/infrastructure/repositories"
	"github.com/avatarctic/clauseguard/internal/infrastructure/security"
	tmocks "github.com/avatarctic/clauseguard/test/mocks"
	"github.com/avatarctic/clauseguard/test/redistest"
)

const testSessionID = "cs_test_a1b2c3d4e5f6g7"

type paymentFixture struct {
	svc      *impl.PaymentService
	provider *tmocks.PaymentProviderMock
	tokens   *tmocks.AccessTokenServiceMock
	sessions *tmocks.SessionTokenRepositoryMock
	mailer   *tmocks.ReceiptMailerMock
	audit    *tmocks.AuditServiceMock
	metrics  *tmocks.MetricsMock
	issued   []string
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		provider: &tmocks.PaymentProviderMock{},
		sessions: &tmocks.SessionTokenRepositoryMock{},
		mailer:   &tmocks.ReceiptMailerMock{},
		audit:    &tmocks.AuditServiceMock{},
		metrics:  &tmocks.MetricsMock{},
	}
	n := 0
	f.tokens = &tmocks.AccessTokenServiceMock{
		GenerateFn: func() (string, error) {
			n++
			return fmt.Sprintf("token-%d", n), nil
		},
		IssueFn: func(ctx context.Context, s string) error {
			f.issued = append(f.issued, s)
			return nil
		},
	}
	f.svc = impl.NewPaymentService(impl.PaymentDeps{
		Provider: f.provider,
		Tokens:   f.tokens,
		Sessions: f.sessions,
		Mailer:   f.mailer,
		Audit:    f.audit,
		Metrics:  f.metrics,
	}, &impl.PaymentConfig{BaseURL: "https://app.example", SessionMaxAge: 24 * time.Hour, TokenTTL: 24 * time.Hour}, nil)
	return f
}

func paidSession(created time.Time) *payment.Session {
	return &payment.Session{ID: testSessionID, PaymentStatus: payment.StatusPaid, CreatedAt: created}
}

func TestPayment_CreateCheckoutUsesBaseURL(t *testing.T) {
	f := newPaymentFixture(t)
	f.provider.CreateCheckoutSessionFn = func(ctx context.Context, success, cancel string) (*payment.Session, error) {
		require.Equal(t, "https://app.example/success?session_id={CHECKOUT_SESSION_ID}", success)
		require.Equal(t, "https://app.example/", cancel)
		return &payment.Session{ID: testSessionID, URL: "https://pay.example/x"}, nil
	}
	url, err := f.svc.CreateCheckout(context.Background())
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/x", url)
}

func TestPayment_CreateCheckoutWithoutURLFails(t *testing.T) {
	f := newPaymentFixture(t)
	f.provider.CreateCheckoutSessionFn = func(ctx context.Context, success, cancel string) (*payment.Session, error) {
		return &payment.Session{ID: testSessionID}, nil
	}
	_, err := f.svc.CreateCheckout(context.Background())
	require.ErrorIs(t, err, payment.ErrProviderFailure)
	require.Equal(t, 1, f.metrics.UpstreamCount("payment", "create_session"))
}

func TestPayment_WebhookPaidMintsTokenAndMailsReceipt(t *testing.T) {
	f := newPaymentFixture(t)
	f.provider.ParseWebhookFn = func(payload []byte, sig string) (*payment.Event, error) {
		s := paidSession(time.Now())
		s.CustomerEmail = "buyer@example.com"
		return &payment.Event{ID: "evt_1", Type: payment.EventCheckoutCompleted, Session: s}, nil
	}

	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig", ports.RequestMeta{}))
	require.Equal(t, []string{"token-1"}, f.issued)
	require.Equal(t, []string{"buyer@example.com"}, f.mailer.Sent)
	require.Equal(t, 1, f.metrics.WebhookCount(payment.EventCheckoutCompleted, "processed"))
	require.Contains(t, f.audit.Actions(), string(audit.ActionWebhookProcessed))

	conf, err := f.svc.VerifySession(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "token-1", conf.AccessToken, "poll recovers the webhook-minted token")
	require.Equal(t, int64(86400), conf.ExpiresIn)
	require.Len(t, f.issued, 1)
}

func TestPayment_WebhookUnpaidOrIgnored(t *testing.T) {
	f := newPaymentFixture(t)
	f.provider.ParseWebhookFn = func(payload []byte, sig string) (*payment.Event, error) {
		return &payment.Event{ID: "evt_1", Type: payment.EventCheckoutCompleted, Session: &payment.Session{ID: testSessionID, PaymentStatus: "unpaid"}}, nil
	}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig", ports.RequestMeta{}))

	f.provider.ParseWebhookFn = func(payload []byte, sig string) (*payment.Event, error) {
		return &payment.Event{ID: "evt_2", Type: "invoice.paid"}, nil
	}
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig", ports.RequestMeta{}))

	require.Empty(t, f.issued)
	require.Equal(t, 1, f.metrics.WebhookCount("invoice.paid", "ignored"))
}

func TestPayment_WebhookIssueFailureIsReported(t *testing.T) {
	f := newPaymentFixture(t)
	f.tokens.IssueFn = func(ctx context.Context, s string) error { return errors.New("store down") }
	f.provider.ParseWebhookFn = func(payload []byte, sig string) (*payment.Event, error) {
		return &payment.Event{ID: "evt_1", Type: payment.EventCheckoutCompleted, Session: paidSession(time.Now())}, nil
	}
	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig", ports.RequestMeta{})
	require.ErrorIs(t, err, payment.ErrTokenIssueFailed)
	_, found, _ := f.sessions.Recall(context.Background(), testSessionID)
	require.False(t, found)
}

func TestPayment_TamperedWebhookTouchesNothing(t *testing.T) {
	f := newPaymentFixture(t)
	provider := billing.NewStripeProvider(&configs.StripeConfig{WebhookSecret: "whsec_real", WebhookTolerance: 5 * time.Minute}, nil, nil)

	issueCalls := 0
	f.tokens.IssueFn = func(ctx context.Context, s string) error { issueCalls++; return nil }
	svc := impl.NewPaymentService(impl.PaymentDeps{
		Provider: provider, Tokens: f.tokens, Sessions: f.sessions, Audit: f.audit, Metrics: f.metrics,
	}, nil, nil)

	body := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","payment_status":"paid","created":%d}}}`, testSessionID, time.Now().Unix()))
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte("whsec_forged"))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(body)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	err := svc.HandleWebhook(context.Background(), body, header, ports.RequestMeta{IPAddress: "203.0.113.9"})
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
	require.Zero(t, issueCalls)
	_, found, _ := f.sessions.Recall(context.Background(), testSessionID)
	require.False(t, found)
	require.Equal(t, []string{string(audit.ActionWebhookSignatureFailure)}, f.audit.Actions())

	// same payload signed with the real secret is accepted
	mac = hmac.New(sha256.New, []byte("whsec_real"))
	mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	mac.Write(body)
	header = fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
	require.NoError(t, svc.HandleWebhook(context.Background(), body, header, ports.RequestMeta{}))
	require.Equal(t, 1, issueCalls)
}

func TestPayment_VerifyRejectsMalformedID(t *testing.T) {
	f := newPaymentFixture(t)
	called := false
	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		called = true
		return nil, nil
	}
	for _, id := range []string{"", "abc", "cs_prod_1234567890", "cs_test_short", "cs_test_abc$defghijkl"} {
		_, err := f.svc.VerifySession(context.Background(), id)
		require.ErrorIs(t, err, payment.ErrInvalidSessionID, id)
	}
	require.False(t, called)
}

func TestPayment_VerifyUnpaidAndStale(t *testing.T) {
	f := newPaymentFixture(t)
	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		return &payment.Session{ID: id, PaymentStatus: "unpaid", CreatedAt: time.Now()}, nil
	}
	_, err := f.svc.VerifySession(context.Background(), testSessionID)
	require.ErrorIs(t, err, payment.ErrNotPaid)

	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		return paidSession(time.Now().Add(-25 * time.Hour)), nil
	}
	_, err = f.svc.VerifySession(context.Background(), testSessionID)
	require.ErrorIs(t, err, payment.ErrSessionStale)
	require.Empty(t, f.issued)
}

func TestPayment_VerifyMintsOncePerSession(t *testing.T) {
	f := newPaymentFixture(t)
	lookups := 0
	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		lookups++
		return paidSession(time.Now().Add(-time.Minute)), nil
	}

	first, err := f.svc.VerifySession(context.Background(), testSessionID)
	require.NoError(t, err)
	second, err := f.svc.VerifySession(context.Background(), testSessionID)
	require.NoError(t, err)

	require.Equal(t, first.AccessToken, second.AccessToken)
	require.Equal(t, 1, lookups)
	require.Len(t, f.issued, 1)
}

func TestPayment_VerifyProviderErrors(t *testing.T) {
	f := newPaymentFixture(t)
	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		return nil, payment.ErrSessionNotFound
	}
	_, err := f.svc.VerifySession(context.Background(), testSessionID)
	require.ErrorIs(t, err, payment.ErrSessionNotFound)
	require.Zero(t, f.metrics.UpstreamCount("payment", "get_session"))

	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		return nil, fmt.Errorf("%w: timeout", payment.ErrProviderFailure)
	}
	_, err = f.svc.VerifySession(context.Background(), testSessionID)
	require.ErrorIs(t, err, payment.ErrProviderFailure)
	require.Equal(t, 1, f.metrics.UpstreamCount("payment", "get_session"))
}

func TestPayment_VerifyReturnsConcurrentlyMappedToken(t *testing.T) {
	f := newPaymentFixture(t)
	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		return paidSession(time.Now()), nil
	}
	f.sessions.RecallFn = func(ctx context.Context, sessionID string) (string, bool, error) {
		return "", false, nil
	}
	f.sessions.RememberFn = func(ctx context.Context, sessionID, token string) (string, error) {
		return "token-from-webhook", nil
	}

	conf, err := f.svc.VerifySession(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, "token-from-webhook", conf.AccessToken)
}

func TestPayment_VerifyAfterSealKeyChangeMintsOnce(t *testing.T) {
	client, _ := redistest.New(t)
	store := cgredis.NewKVStore(client)
	ctx := context.Background()

	before, err := security.NewEphemeralSealer()
	require.NoError(t, err)
	_, err = repositories.NewSessionTokenRepository(store, before, time.Hour, nil).Remember(ctx, testSessionID, "token-before-restart")
	require.NoError(t, err)

	after, err := security.NewEphemeralSealer()
	require.NoError(t, err)
	f := newPaymentFixture(t)
	f.provider.GetSessionFn = func(ctx context.Context, id string) (*payment.Session, error) {
		return paidSession(time.Now()), nil
	}
	svc := impl.NewPaymentService(impl.PaymentDeps{
		Provider: f.provider,
		Tokens:   f.tokens,
		Sessions: repositories.NewSessionTokenRepository(store, after, time.Hour, nil),
	}, &impl.PaymentConfig{BaseURL: "https://app.example", SessionMaxAge: 24 * time.Hour, TokenTTL: 24 * time.Hour}, nil)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		conf, err := svc.VerifySession(ctx, testSessionID)
		require.NoError(t, err)
		seen[conf.AccessToken] = true
	}
	require.Len(t, f.issued, 1)
	require.Len(t, seen, 1)
}
