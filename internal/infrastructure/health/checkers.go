package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/avatarctic/clauseguard/internal/core/ports"
	infraDB "github.com/avatarctic/clauseguard/internal/infrastructure/db"
)

// dbHealthChecker wraps the audit database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.Ping(ctx) }

// storeHealthChecker pings the shared key-value store.
type storeHealthChecker struct{ store ports.KeyValueStore }

func (s *storeHealthChecker) Name() string                    { return "redis" }
func (s *storeHealthChecker) Check(ctx context.Context) error { return s.store.Ping(ctx) }

// credentialChecker verifies a configured secret has the expected shape.
// It never calls the remote service.
type credentialChecker struct {
	name     string
	value    string
	prefixes []string
}

func (c *credentialChecker) Name() string { return c.name }

func (c *credentialChecker) Check(ctx context.Context) error {
	v := strings.TrimSpace(c.value)
	if v == "" {
		return fmt.Errorf("%s is not configured", c.name)
	}
	for _, p := range c.prefixes {
		if strings.HasPrefix(v, p) {
			return nil
		}
	}
	return fmt.Errorf("%s has an unexpected format", c.name)
}

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewStoreHealthChecker creates a health checker for the key-value store.
func NewStoreHealthChecker(store ports.KeyValueStore) ports.HealthChecker {
	return &storeHealthChecker{store: store}
}

func NewStripeKeyChecker(key string) ports.HealthChecker {
	return &credentialChecker{name: "stripe_secret_key", value: key, prefixes: []string{"sk_test_", "sk_live_", "rk_test_", "rk_live_"}}
}

func NewStripeWebhookSecretChecker(secret string) ports.HealthChecker {
	return &credentialChecker{name: "stripe_webhook_secret", value: secret, prefixes: []string{"whsec_"}}
}

func NewStripePriceChecker(priceID string) ports.HealthChecker {
	return &credentialChecker{name: "stripe_price_id", value: priceID, prefixes: []string{"price_"}}
}

func NewAnthropicKeyChecker(key string) ports.HealthChecker {
	return &credentialChecker{name: "anthropic_api_key", value: key, prefixes: []string{"sk-ant-"}}
}
