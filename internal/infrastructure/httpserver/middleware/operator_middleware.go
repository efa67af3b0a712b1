package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/clauseguard/internal/core/ports"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/helpers"
)

type OperatorMiddleware struct {
	operatorService ports.OperatorService
	logger          *logrus.Logger
}

func NewOperatorMiddleware(operatorService ports.OperatorService, logger *logrus.Logger) *OperatorMiddleware {
	return &OperatorMiddleware{operatorService: operatorService, logger: logger}
}

// RequireOperator admits requests carrying a valid operator session token.
func (m *OperatorMiddleware) RequireOperator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := helpers.GetBearerToken(c)
			if err != nil {
				return err
			}
			if err := m.operatorService.ValidateToken(tokenString); err != nil {
				if m.logger != nil {
					m.logger.WithFields(logrus.Fields{"ip": c.RealIP(), "path": c.Request().URL.Path}).Warn("operator token rejected")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid operator token")
			}
			helpers.SetOperator(c)
			return next(c)
		}
	}
}
