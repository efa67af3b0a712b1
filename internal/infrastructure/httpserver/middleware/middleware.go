package middleware

import (
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// MiddlewareCollection bundles the request pipeline pieces the server mounts.
// Operator guards the operator group, RateLimit wraps individual routes and the
// rest run globally.
type MiddlewareCollection struct {
	Operator  *OperatorMiddleware
	RateLimit *RateLimitMiddleware
	Logging   *LoggingMiddleware
	Metrics   *MetricsMiddleware
}

func NewMiddlewareCollection(
	operators ports.OperatorService,
	limiter ports.RateLimiterService,
	logger *logrus.Logger,
	instruments HTTPInstruments,
) *MiddlewareCollection {
	return &MiddlewareCollection{
		Operator:  NewOperatorMiddleware(operators, logger),
		RateLimit: NewRateLimitMiddleware(limiter, logger),
		Logging:   NewLoggingMiddleware(logger),
		Metrics:   NewMetricsMiddleware(instruments),
	}
}
