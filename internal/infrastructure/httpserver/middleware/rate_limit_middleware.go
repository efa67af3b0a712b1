package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/helpers"
)

type RateLimitMiddleware struct {
	rateLimiter ports.RateLimiterService
	logger      *logrus.Logger
}

func NewRateLimitMiddleware(rateLimiter ports.RateLimiterService, logger *logrus.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{rateLimiter: rateLimiter, logger: logger}
}

// Limit counts each request against "<bucket>:<client ip>". The limiter
// itself fails open, so a store outage never blocks the route.
func (r *RateLimitMiddleware) Limit(bucket string, policy ratelimit.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			client := helpers.ClientID(c)
			decision := r.rateLimiter.Check(c.Request().Context(), bucket+":"+client, policy.Limit, policy.Window)
			if !decision.Admitted {
				if r.logger != nil {
					r.logger.WithFields(logrus.Fields{"bucket": bucket, "client": client, "reset_at": decision.ResetAt}).Debug("request rate limited")
				}
				return helpers.RateLimited(c, decision)
			}
			helpers.WriteRateLimitHeaders(c, decision)
			return next(c)
		}
	}
}
