package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/clauseguard/internal/core/domain/analysis"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/helpers"
)

func (s *Server) analyze(c echo.Context) error {
	var req analysis.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
	}

	res, err := s.analysisSvc.Analyze(c.Request().Context(), &req, helpers.ClientID(c))
	if err != nil {
		var rl *analysis.RateLimitedError
		switch {
		case errors.As(err, &rl):
			return helpers.RateLimited(c, rl.Decision)
		case errors.Is(err, analysis.ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, validationMessage(err))
		case errors.Is(err, analysis.ErrTokenRequired):
			return echo.NewHTTPError(http.StatusForbidden, "Access token required. Purchase an analysis to continue.")
		case errors.Is(err, analysis.ErrInvalidToken):
			return echo.NewHTTPError(http.StatusForbidden, "Invalid or expired access token.")
		case errors.Is(err, analysis.ErrUpstreamRateLimited):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Analysis service is busy. Please try again shortly.")
		case errors.Is(err, analysis.ErrUpstreamMisconfigured):
			return echo.NewHTTPError(http.StatusInternalServerError, "Analysis service is unavailable.").SetInternal(err)
		case errors.Is(err, analysis.ErrUpstreamUnavailable):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Analysis service is temporarily unavailable.")
		default:
			return err
		}
	}

	helpers.WriteRateLimitHeaders(c, res.RateLimit)
	return c.JSON(http.StatusOK, res)
}

// validationMessage strips the sentinel prefix from wrapped validation errors.
func validationMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{analysis.ErrInvalidInput, analysis.ErrInvalidExportRequest} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
