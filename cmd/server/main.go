package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/clauseguard/configs"
	"github.com/avatarctic/clauseguard/internal/application/services"
	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
	"github.com/avatarctic/clauseguard/internal/infrastructure/anthropic"
	"github.com/avatarctic/clauseguard/internal/infrastructure/billing"
	"github.com/avatarctic/clauseguard/internal/infrastructure/db"
	"github.com/avatarctic/clauseguard/internal/infrastructure/document"
	"github.com/avatarctic/clauseguard/internal/infrastructure/email"
	"github.com/avatarctic/clauseguard/internal/infrastructure/extract"
	"github.com/avatarctic/clauseguard/internal/infrastructure/health"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver"
	"github.com/avatarctic/clauseguard/internal/infrastructure/metrics"
	"github.com/avatarctic/clauseguard/internal/infrastructure/redis"
	"github.com/avatarctic/clauseguard/internal/infrastructure/repositories"
	"github.com/avatarctic/clauseguard/internal/infrastructure/security"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("Starting ClauseGuard API...")

	// Redis backs the limiter, the token store and the analysis cache. The
	// limiter fails open and token operations fail closed, so an outage at
	// boot is survivable.
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	store := redis.NewKVStore(redisClient)
	switch {
	case errors.Is(err, redis.ErrGetDelUnsupported):
		store.PreferScriptedGetDel()
		logger.WithError(err).Warn("Redis lacks GETDEL; consuming tokens through a Lua script")
	case err != nil:
		logger.WithError(err).Warn("Redis unavailable at startup; continuing in degraded mode")
	default:
		logger.Info("Connected to Redis successfully")
	}
	defer redisClient.Close()

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	sealer, err := newSealer(cfg.Access.SealKey, logger)
	if err != nil {
		logger.Fatal("Failed to initialize token sealer:", err)
	}

	// Repositories
	rateLimitRepo := repositories.NewRateLimitRepository(store)
	accessTokenRepo := repositories.NewAccessTokenRepository(store, cfg.Access.TokenTTL, logger)
	sessionTokenRepo := repositories.NewSessionTokenRepository(store, sealer, cfg.Stripe.SessionMaxAge, logger)
	analysisCache := redis.NewRedisCache(redisClient, "analysis_cache")

	// Audit trail: Postgres when configured, structured log lines otherwise.
	var database *db.Database
	auditRepo := repositories.NewLogAuditRepository(logger)
	if cfg.Database.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		database, err = db.NewDatabase(ctx, &cfg.Database)
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to database:", err)
		}
		defer database.Close()
		logger.Info("Connected to database successfully")

		if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
			logger.Warn("Failed to run migrations:", err)
		}
		auditRepo = repositories.NewAuditRepository(database.DB, logger)
	}

	// Services
	rateLimiterService := services.NewRateLimiterService(rateLimitRepo, recorder, logger)
	accessTokenService := services.NewAccessTokenService(accessTokenRepo, &services.AccessTokenConfig{
		ConsumeDelayMin: cfg.Access.ConsumeDelayMin,
		ConsumeDelayMax: cfg.Access.ConsumeDelayMax,
	}, recorder, logger)
	auditService := services.NewAuditService(auditRepo, logger)

	mailer, err := email.NewReceiptMailer(&email.EmailConfig{
		SendGridAPIKey: cfg.Email.SendGridAPIKey,
		FromEmail:      cfg.Email.FromEmail,
		FromName:       cfg.Email.FromName,
		CompanyName:    cfg.Email.CompanyName,
		BaseURL:        cfg.Server.BaseURL,
		TemplateDir:    cfg.Email.TemplateDir,
		TokenTTL:       cfg.Access.TokenTTL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize email service:", err)
	}

	paymentService := services.NewPaymentService(services.PaymentDeps{
		Provider: billing.NewStripeProvider(&cfg.Stripe, nil, logger),
		Tokens:   accessTokenService,
		Sessions: sessionTokenRepo,
		Mailer:   mailer,
		Audit:    auditService,
		Metrics:  recorder,
	}, &services.PaymentConfig{
		BaseURL:       cfg.Server.BaseURL,
		SessionMaxAge: cfg.Stripe.SessionMaxAge,
		TokenTTL:      cfg.Access.TokenTTL,
	}, logger)

	analysisService := services.NewAnalysisService(
		rateLimiterService,
		accessTokenService,
		anthropic.NewClient(cfg.Anthropic, recorder, logger),
		analysisCache,
		&services.AnalysisConfig{
			Paid:            policy(cfg.RateLimit.Analyze),
			Sample:          policy(cfg.RateLimit.Sample),
			CacheTTL:        cfg.Anthropic.CacheTTL,
			UpstreamTimeout: cfg.Anthropic.Timeout,
		},
		logger,
	)

	operatorService := services.NewOperatorService(services.OperatorConfig{
		PasswordHash: cfg.Operator.PasswordHash,
		JWTSecret:    cfg.Operator.JWTSecret,
		TokenTTL:     cfg.Operator.TokenTTL,
	}, logger)
	if cfg.Operator.PasswordHash == "" || cfg.Operator.JWTSecret == "" {
		logger.Warn("OPERATOR_PASSWORD_HASH or OPERATOR_JWT_SECRET not set; operator routes are disabled")
	}

	hcSlice := []ports.HealthChecker{
		health.NewStoreHealthChecker(store),
		health.NewStripeKeyChecker(cfg.Stripe.SecretKey),
		health.NewStripeWebhookSecretChecker(cfg.Stripe.WebhookSecret),
		health.NewStripePriceChecker(cfg.Stripe.PriceID),
		health.NewAnthropicKeyChecker(cfg.Anthropic.APIKey),
	}
	if database != nil {
		hcSlice = append(hcSlice, health.NewDBHealthChecker(database))
	}

	// Create server configuration
	serverConfig := &httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Environment:    cfg.Server.Environment,
		TrustProxy:     cfg.Server.TrustProxy,
	}

	deps := httpserver.ServerDeps{
		AnalysisService:    analysisService,
		PaymentService:     paymentService,
		AccessTokenService: accessTokenService,
		OperatorService:    operatorService,
		AuditService:       auditService,
		RateLimiterService: rateLimiterService,
		DocumentRenderer:   document.NewPDFRenderer(cfg.Email.CompanyName),
		TextExtractor:      extract.NewExtractor(logger),
		HealthCheckers:     hcSlice,
		RateLimits: httpserver.RateLimits{
			Checkout: policy(cfg.RateLimit.Checkout),
			Verify:   policy(cfg.RateLimit.Verify),
			Webhook:  policy(cfg.RateLimit.Webhook),
			Export:   policy(cfg.RateLimit.Export),
			Extract:  policy(cfg.RateLimit.Extract),
			Operator: policy(cfg.RateLimit.Operator),
		},
	}

	server := httpserver.NewServer(serverConfig, logger, deps)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Analysis calls can run for a minute; give them a chance to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

// newSealer falls back to a per-process key, which makes session->token
// recovery entries unreadable after a restart.
func newSealer(key []byte, logger *logrus.Logger) (*security.Sealer, error) {
	if len(key) > 0 {
		return security.NewSealer(key)
	}
	logger.Warn("ACCESS_SEAL_KEY not set; using an ephemeral key for checkout session recovery")
	return security.NewEphemeralSealer()
}

func policy(p config.RatePolicy) ratelimit.Policy {
	return ratelimit.Policy{Limit: p.Limit, Window: p.Window}
}
