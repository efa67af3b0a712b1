package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
	customMiddleware "github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/middleware"
)

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	AllowedOrigins []string
	Environment    string
	TrustProxy     bool
}

// RateLimits are the per-route budgets enforced at the HTTP layer. The
// analysis quotas live in the analysis service since they depend on the tier.
type RateLimits struct {
	Checkout ratelimit.Policy
	Verify   ratelimit.Policy
	Webhook  ratelimit.Policy
	Export   ratelimit.Policy
	Extract  ratelimit.Policy
	Operator ratelimit.Policy
}

func (r RateLimits) withDefaults() RateLimits {
	def := func(p ratelimit.Policy, limit int, window time.Duration) ratelimit.Policy {
		if p.Valid() {
			return p
		}
		return ratelimit.Policy{Limit: limit, Window: window}
	}
	return RateLimits{
		Checkout: def(r.Checkout, 10, time.Minute),
		Verify:   def(r.Verify, 20, time.Minute),
		Webhook:  def(r.Webhook, 100, time.Minute),
		Export:   def(r.Export, 20, time.Minute),
		Extract:  def(r.Extract, 10, time.Minute),
		Operator: def(r.Operator, 5, 15*time.Minute),
	}
}

type ServerDeps struct {
	AnalysisService    ports.AnalysisService
	PaymentService     ports.PaymentService
	AccessTokenService ports.AccessTokenService
	OperatorService    ports.OperatorService
	AuditService       ports.AuditService
	RateLimiterService ports.RateLimiterService
	DocumentRenderer   ports.DocumentRenderer
	TextExtractor      ports.TextExtractor
	HealthCheckers     []ports.HealthChecker
	RateLimits         RateLimits
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	analysisSvc    ports.AnalysisService
	paymentSvc     ports.PaymentService
	tokenSvc       ports.AccessTokenService
	operatorSvc    ports.OperatorService
	auditSvc       ports.AuditService
	renderer       ports.DocumentRenderer
	extractor      ports.TextExtractor
	limits         RateLimits
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		analysisSvc:    deps.AnalysisService,
		paymentSvc:     deps.PaymentService,
		tokenSvc:       deps.AccessTokenService,
		operatorSvc:    deps.OperatorService,
		auditSvc:       deps.AuditService,
		renderer:       deps.DocumentRenderer,
		extractor:      deps.TextExtractor,
		limits:         deps.RateLimits.withDefaults(),
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			deps.OperatorService,
			deps.RateLimiterService,
			logger,
			httpInstruments(),
		),
	}

	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = server.httpErrorHandler
	if serverConfig.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
