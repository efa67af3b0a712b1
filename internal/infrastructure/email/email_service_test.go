package email_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/clauseguard/internal/infrastructure/email"
)

func TestReceiptMailer_NoopWithoutKey(t *testing.T) {
	m, err := email.NewReceiptMailer(&email.EmailConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, m.SendAccessToken(context.Background(), "buyer@example.com", "tok"))
}

func TestReceiptMailer_SendsTokenThroughSendGrid(t *testing.T) {
	var body string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := email.NewReceiptMailer(&email.EmailConfig{
		SendGridAPIKey: "SG.test",
		FromEmail:      "noreply@example.com",
		FromName:       "ClauseGuard",
		CompanyName:    "ClauseGuard",
		BaseURL:        "https://app.example",
		TokenTTL:       24 * time.Hour,
		APIHost:        srv.URL,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, m.SendAccessToken(context.Background(), "buyer@example.com", "deadbeefcafe"))
	require.Equal(t, "Bearer SG.test", auth)
	require.Contains(t, body, "deadbeefcafe")
	require.Contains(t, body, "buyer@example.com")
}

func TestReceiptMailer_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, err := email.NewReceiptMailer(&email.EmailConfig{SendGridAPIKey: "SG.bad", APIHost: srv.URL}, nil)
	require.NoError(t, err)
	require.Error(t, m.SendAccessToken(context.Background(), "buyer@example.com", "tok"))
}
