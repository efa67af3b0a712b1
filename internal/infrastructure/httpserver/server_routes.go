package httpserver

import (
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint())

	rl := s.middleware.RateLimit
	api := s.echo.Group("/api/v1")

	api.POST("/analyze", s.analyze, middleware.BodyLimit("512K"))

	api.POST("/checkout", s.createCheckout, rl.Limit("checkout", s.limits.Checkout))
	api.GET("/checkout/verify", s.verifyCheckout, rl.Limit("verify", s.limits.Verify))
	api.POST("/webhooks/stripe", s.stripeWebhook, rl.Limit("webhook", s.limits.Webhook), middleware.BodyLimit("1M"))

	api.POST("/export", s.exportReport, rl.Limit("export", s.limits.Export), middleware.BodyLimit("512K"))
	api.POST("/extract", s.extractText, rl.Limit("extract", s.limits.Extract), middleware.BodyLimit("6M"))

	operator := api.Group("/operator")
	operator.POST("/login", s.operatorLogin, rl.Limit("operator", s.limits.Operator))

	protected := operator.Group("")
	protected.Use(s.middleware.Operator.RequireOperator())
	protected.POST("/tokens/reactivate", s.reactivateToken)
	protected.POST("/tokens/check", s.checkToken)
	protected.GET("/audit", s.listAuditEvents)
}
