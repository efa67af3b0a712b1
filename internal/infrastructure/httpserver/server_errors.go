package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate reports the first failing field as a 400.
func (v *requestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s failed %s validation", lowerFirst(fe.Field()), fe.Tag()))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// httpErrorHandler renders every error as {"error": "..."}. Only messages of
// *echo.HTTPError reach the client; anything else becomes a generic 500.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
		if he.Internal != nil && s.logger != nil {
			s.logger.WithFields(logrus.Fields{"path": c.Request().URL.Path, "status": code}).WithError(he.Internal).Warn("request failed")
		}
	} else if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"path": c.Request().URL.Path}).WithError(err).Error("unhandled error")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": msg})
	}
	if err != nil && s.logger != nil {
		s.logger.WithError(err).Error("failed to write error response")
	}
}
