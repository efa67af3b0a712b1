package configs

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Access    AccessConfig
	Stripe    StripeConfig
	Anthropic AnthropicConfig
	Email     EmailConfig
	Database  DatabaseConfig
	Operator  OperatorConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	BaseURL        string
	AllowedOrigins []string
	Environment    string
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

// RatePolicy is a request budget for one bucket.
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Analyze  RatePolicy
	Sample   RatePolicy
	Checkout RatePolicy
	Verify   RatePolicy
	Webhook  RatePolicy
	Export   RatePolicy
	Extract  RatePolicy
	Operator RatePolicy
}

type AccessConfig struct {
	TokenTTL        time.Duration
	ConsumeDelayMin time.Duration
	ConsumeDelayMax time.Duration
	// SealKey encrypts session->token recovery entries. 32 bytes, hex encoded.
	SealKey []byte
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	PriceID          string
	WebhookTolerance time.Duration
	SessionMaxAge    time.Duration
}

type AnthropicConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxTokens       int
	SampleMaxTokens int
	Timeout         time.Duration
	RequestsPerSec  float64
	CacheTTL        time.Duration
}

type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	CompanyName    string
	TemplateDir    string
}

type DatabaseConfig struct {
	DSN string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

type OperatorConfig struct {
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:    getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:     getEnv("TLS_KEY_FILE", ""),
			BaseURL:        strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS", []string{"*"}),
			Environment:    getEnv("APP_ENV", "development"),
			TrustProxy:     getEnv("TRUST_PROXY", "false") == "true",
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Analyze:  getPolicyEnv("RATE_LIMIT_ANALYZE", 10, time.Hour),
			Sample:   getPolicyEnv("RATE_LIMIT_SAMPLE", 3, 24*time.Hour),
			Checkout: getPolicyEnv("RATE_LIMIT_CHECKOUT", 10, time.Minute),
			Verify:   getPolicyEnv("RATE_LIMIT_VERIFY", 20, time.Minute),
			Webhook:  getPolicyEnv("RATE_LIMIT_WEBHOOK", 100, time.Minute),
			Export:   getPolicyEnv("RATE_LIMIT_EXPORT", 20, time.Minute),
			Extract:  getPolicyEnv("RATE_LIMIT_EXTRACT", 10, time.Minute),
			Operator: getPolicyEnv("RATE_LIMIT_OPERATOR", 5, 15*time.Minute),
		},
		Access: AccessConfig{
			TokenTTL:        getDurationEnv("ACCESS_TOKEN_TTL", 24*time.Hour),
			ConsumeDelayMin: getDurationEnv("ACCESS_CONSUME_DELAY_MIN", 100*time.Millisecond),
			ConsumeDelayMax: getDurationEnv("ACCESS_CONSUME_DELAY_MAX", 150*time.Millisecond),
		},
		Stripe: StripeConfig{
			SecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceID:          getEnv("STRIPE_PRICE_ID", ""),
			WebhookTolerance: getDurationEnv("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
			SessionMaxAge:    getDurationEnv("STRIPE_SESSION_MAX_AGE", 24*time.Hour),
		},
		Anthropic: AnthropicConfig{
			APIKey:          getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:         strings.TrimRight(getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"), "/"),
			Model:           getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
			MaxTokens:       getIntEnv("ANTHROPIC_MAX_TOKENS", 4096),
			SampleMaxTokens: getIntEnv("ANTHROPIC_SAMPLE_MAX_TOKENS", 1024),
			Timeout:         getDurationEnv("ANTHROPIC_TIMEOUT", 60*time.Second),
			RequestsPerSec:  getFloatEnv("ANTHROPIC_RPS", 2.0),
			CacheTTL:        getDurationEnv("ANALYSIS_CACHE_TTL", 24*time.Hour),
		},
		Email: EmailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("FROM_EMAIL", "noreply@example.com"),
			FromName:       getEnv("FROM_NAME", "ClauseGuard"),
			CompanyName:    getEnv("COMPANY_NAME", "ClauseGuard"),
			TemplateDir:    getEnv("EMAIL_TEMPLATE_DIR", "templates/email"),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			MigrationsPath:  getEnv("DB_MIGRATIONS_PATH", "./migrations"),
		},
		Operator: OperatorConfig{
			PasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
			JWTSecret:    getEnv("OPERATOR_JWT_SECRET", ""),
			TokenTTL:     getDurationEnv("OPERATOR_TOKEN_TTL", time.Hour),
		},
	}

	if raw := getEnv("ACCESS_SEAL_KEY", ""); raw != "" {
		key, err := ParseSealKey(raw)
		if err != nil {
			return nil, err
		}
		cfg.Access.SealKey = key
	}

	if cfg.Access.ConsumeDelayMax < cfg.Access.ConsumeDelayMin {
		return nil, fmt.Errorf("ACCESS_CONSUME_DELAY_MAX must not be below ACCESS_CONSUME_DELAY_MIN")
	}

	return cfg, nil
}

// ParseSealKey decodes a hex encoded 32 byte key.
func ParseSealKey(raw string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("ACCESS_SEAL_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ACCESS_SEAL_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getPolicyEnv reads <PREFIX>_LIMIT and <PREFIX>_WINDOW.
func getPolicyEnv(prefix string, limit int, window time.Duration) RatePolicy {
	p := RatePolicy{
		Limit:  getIntEnv(prefix+"_LIMIT", limit),
		Window: getDurationEnv(prefix+"_WINDOW", window),
	}
	if p.Limit <= 0 {
		p.Limit = limit
	}
	if p.Window <= 0 {
		p.Window = window
	}
	return p
}
