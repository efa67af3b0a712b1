package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v76"

	"github.com/avatarctic/clauseguard/configs"
	"github.com/avatarctic/clauseguard/internal/core/domain/payment"
	"github.com/avatarctic/clauseguard/internal/infrastructure/billing"
)

const whsec = "whsec_test_secret"

// sign builds a Stripe-Signature header for payload.
func sign(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", ts.Unix())))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func completedPayload(status string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_a1b2c3d4e5f6","object":"checkout.session","payment_status":%q,"created":%d,"customer_details":{"email":"buyer@example.com"}}}}`, status, time.Now().Unix()))
}

func newProvider(backends *stripe.Backends) *billing.StripeProvider {
	return billing.NewStripeProvider(&configs.StripeConfig{
		SecretKey:        "sk_test_123",
		WebhookSecret:    whsec,
		PriceID:          "price_123",
		WebhookTolerance: 5 * time.Minute,
	}, backends, nil)
}

func TestParseWebhook_ValidSignature(t *testing.T) {
	p := newProvider(nil)
	body := completedPayload("paid")

	ev, err := p.ParseWebhook(body, sign(whsec, body, time.Now()))
	require.NoError(t, err)
	require.Equal(t, payment.EventCheckoutCompleted, ev.Type)
	require.NotNil(t, ev.Session)
	require.Equal(t, "cs_test_a1b2c3d4e5f6", ev.Session.ID)
	require.True(t, ev.Session.Paid())
	require.Equal(t, "buyer@example.com", ev.Session.CustomerEmail)
}

func TestParseWebhook_RejectsTamperedOrStale(t *testing.T) {
	p := newProvider(nil)
	body := completedPayload("paid")

	tampered := []byte(strings.Replace(string(body), "paid", "PAID", 1))
	_, err := p.ParseWebhook(tampered, sign(whsec, body, time.Now()))
	require.ErrorIs(t, err, payment.ErrInvalidSignature)

	_, err = p.ParseWebhook(body, sign("whsec_other", body, time.Now()))
	require.ErrorIs(t, err, payment.ErrInvalidSignature)

	_, err = p.ParseWebhook(body, sign(whsec, body, time.Now().Add(-time.Hour)))
	require.ErrorIs(t, err, payment.ErrInvalidSignature)

	_, err = p.ParseWebhook(body, "")
	require.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestParseWebhook_OtherEventsHaveNoSession(t *testing.T) {
	p := newProvider(nil)
	body := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge"}}}`)
	ev, err := p.ParseWebhook(body, sign(whsec, body, time.Now()))
	require.NoError(t, err)
	require.Equal(t, "charge.refunded", ev.Type)
	require.Nil(t, ev.Session)
}

func stubBackends(t *testing.T, h http.HandlerFunc) *stripe.Backends {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func TestGetSession_MapsFields(t *testing.T) {
	created := time.Now().Add(-time.Minute).Unix()
	p := newProvider(stubBackends(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_a1b2c3d4e5f6", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"cs_test_a1b2c3d4e5f6","object":"checkout.session","payment_status":"paid","created":%d}`, created)
	}))

	s, err := p.GetSession(context.Background(), "cs_test_a1b2c3d4e5f6")
	require.NoError(t, err)
	require.True(t, s.Paid())
	require.Equal(t, created, s.CreatedAt.Unix())
}

func TestGetSession_NotFound(t *testing.T) {
	p := newProvider(stubBackends(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`)
	}))

	_, err := p.GetSession(context.Background(), "cs_test_a1b2c3d4e5f6")
	require.ErrorIs(t, err, payment.ErrSessionNotFound)
}

func TestCreateCheckoutSession_ReturnsURL(t *testing.T) {
	p := newProvider(stubBackends(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "price_123", r.PostForm.Get("line_items[0][price]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_a1b2c3d4e5f6","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test"}`)
	}))

	s, err := p.CreateCheckoutSession(context.Background(), "https://app/success", "https://app/")
	require.NoError(t, err)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test", s.URL)
}
