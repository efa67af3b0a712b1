package helpers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/core/ports"
)

// GetBearerToken extracts the token from an Authorization: Bearer header.
func GetBearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty token")
	}
	return token, nil
}

// ClientID identifies the caller for rate limiting.
func ClientID(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func RequestMeta(c echo.Context) ports.RequestMeta {
	return ports.RequestMeta{IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

// WriteRateLimitHeaders exposes a limiter decision on the response.
func WriteRateLimitHeaders(c echo.Context, d ratelimit.Result) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

type rateLimitedBody struct {
	Error     string    `json:"error"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RateLimited writes the 429 response for a rejected decision.
func RateLimited(c echo.Context, d ratelimit.Result) error {
	WriteRateLimitHeaders(c, d)
	c.Response().Header().Set("Retry-After", strconv.Itoa(d.RetryAfter(time.Now())))
	return c.JSON(http.StatusTooManyRequests, rateLimitedBody{
		Error:     "Too many requests. Please try again later.",
		Remaining: 0,
		ResetAt:   d.ResetAt.UTC(),
	})
}
