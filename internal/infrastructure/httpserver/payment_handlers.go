package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/clauseguard/internal/core/domain/payment"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/helpers"
)

const maxWebhookBytes = 1 << 20

func (s *Server) createCheckout(c echo.Context) error {
	url, err := s.paymentSvc.CreateCheckout(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create checkout session.").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (s *Server) verifyCheckout(c echo.Context) error {
	conf, err := s.paymentSvc.VerifySession(c.Request().Context(), c.QueryParam("session_id"))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidSessionID):
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid session id.")
		case errors.Is(err, payment.ErrNotPaid), errors.Is(err, payment.ErrSessionNotFound):
			return echo.NewHTTPError(http.StatusForbidden, "Payment not completed.")
		case errors.Is(err, payment.ErrSessionStale):
			return echo.NewHTTPError(http.StatusForbidden, "Checkout session has expired.")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to verify payment.").SetInternal(err)
		}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, conf)
}

// stripeWebhook must answer non-2xx on processing failures so the provider retries.
func (s *Server) stripeWebhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read request body.")
	}

	err = s.paymentSvc.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"), helpers.RequestMeta(c))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid signature.")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Webhook processing failed.").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
