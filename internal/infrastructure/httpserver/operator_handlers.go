package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/clauseguard/internal/core/domain/access"
	"github.com/avatarctic/clauseguard/internal/core/domain/audit"
	"github.com/avatarctic/clauseguard/internal/core/domain/operator"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/helpers"
)

func (s *Server) operatorLogin(c echo.Context) error {
	var req operator.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, expiresAt, err := s.operatorSvc.Login(c.Request().Context(), req.Password)
	if err != nil {
		if errors.Is(err, operator.ErrDisabled) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Operator access is not configured.")
		}
		s.audit(c, audit.ActionOperatorLoginFailed, "", nil)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	s.audit(c, audit.ActionOperatorLogin, operator.Subject, nil)
	return c.JSON(http.StatusOK, operator.LoginResponse{
		Token:     token,
		ExpiresIn: int64(time.Until(expiresAt).Seconds()),
	})
}

// reactivateToken restores a token whose analysis failed after consumption.
func (s *Server) reactivateToken(c echo.Context) error {
	var req operator.TokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ok := s.tokenSvc.Reactivate(c.Request().Context(), req.Token)
	s.audit(c, audit.ActionTokenReactivated, access.LogFragment(req.Token), map[string]any{"reactivated": ok})
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Token store unavailable.")
	}
	return c.JSON(http.StatusOK, map[string]bool{"reactivated": true})
}

func (s *Server) checkToken(c echo.Context) error {
	var req operator.TokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	exists := s.tokenSvc.Check(c.Request().Context(), req.Token)
	s.audit(c, audit.ActionTokenChecked, access.LogFragment(req.Token), map[string]any{"exists": exists})
	return c.JSON(http.StatusOK, map[string]bool{"exists": exists})
}

func (s *Server) listAuditEvents(c echo.Context) error {
	if s.auditSvc == nil {
		return c.JSON(http.StatusOK, map[string]any{"events": []any{}})
	}
	filter := &audit.Filter{}
	if a := c.QueryParam("action"); a != "" {
		action := audit.Action(a)
		filter.Action = &action
	}
	if sub := c.QueryParam("subject"); sub != "" {
		filter.Subject = &sub
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	events, err := s.auditSvc.List(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list audit events.").SetInternal(err)
	}
	if events == nil {
		events = []*audit.Event{}
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events, "limit": filter.Limit, "offset": filter.Offset})
}

func (s *Server) audit(c echo.Context, action audit.Action, subject string, details any) {
	if s.auditSvc == nil {
		return
	}
	meta := helpers.RequestMeta(c)
	s.auditSvc.Record(c.Request().Context(), &audit.RecordRequest{
		Action:    action,
		Subject:   subject,
		Details:   details,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
}
