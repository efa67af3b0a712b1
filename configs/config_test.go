package configs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 24*time.Hour, cfg.Access.TokenTTL)
	require.Equal(t, 100*time.Millisecond, cfg.Access.ConsumeDelayMin)
	require.Equal(t, 150*time.Millisecond, cfg.Access.ConsumeDelayMax)
	require.Equal(t, RatePolicy{Limit: 3, Window: 24 * time.Hour}, cfg.RateLimit.Sample)
	require.Equal(t, 24*time.Hour, cfg.Stripe.SessionMaxAge)
	require.Nil(t, cfg.Access.SealKey)
}

func TestLoad_PolicyOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_VERIFY_LIMIT", "7")
	t.Setenv("RATE_LIMIT_VERIFY_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_EXPORT_LIMIT", "-4")
	t.Setenv("BASE_URL", "https://clauseguard.example/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, RatePolicy{Limit: 7, Window: 30 * time.Second}, cfg.RateLimit.Verify)
	require.Equal(t, 20, cfg.RateLimit.Export.Limit, "non-positive limits fall back to the default")
	require.Equal(t, "https://clauseguard.example", cfg.Server.BaseURL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_SealKey(t *testing.T) {
	t.Setenv("ACCESS_SEAL_KEY", strings.Repeat("ab", 32))
	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Access.SealKey, 32)

	t.Setenv("ACCESS_SEAL_KEY", "abcd")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("ACCESS_SEAL_KEY", "not-hex")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_RejectsInvertedConsumeDelay(t *testing.T) {
	t.Setenv("ACCESS_CONSUME_DELAY_MIN", "200ms")
	t.Setenv("ACCESS_CONSUME_DELAY_MAX", "100ms")
	_, err := Load()
	require.Error(t, err)
}
