package helpers

import (
	"github.com/labstack/echo/v4"
)

// operatorKey marks a request authenticated by RequireOperator.
const operatorKey = "clauseguard.operator"

func SetOperator(c echo.Context) { c.Set(operatorKey, true) }

func IsOperator(c echo.Context) bool {
	ok, _ := c.Get(operatorKey).(bool)
	return ok
}

// RequestID returns the id assigned by the RequestID middleware, falling back
// to one supplied by an upstream proxy.
func RequestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
