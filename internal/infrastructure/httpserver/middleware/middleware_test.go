package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/clauseguard/internal/core/domain/ratelimit"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/helpers"
	"github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/middleware"
	tmocks "github.com/avatarctic/clauseguard/test/mocks"
)

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRequireOperator_MissingTokenReturns401(t *testing.T) {
	e := echo.New()
	m := middleware.NewOperatorMiddleware(&tmocks.OperatorServiceMock{}, logrus.New())
	handler := m.RequireOperator()(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := handler(c)
	require.Error(t, err)
	htErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, htErr.Code)
}

func TestRequireOperator_MalformedHeaderReturns401(t *testing.T) {
	e := echo.New()
	m := middleware.NewOperatorMiddleware(&tmocks.OperatorServiceMock{}, logrus.New())
	handler := m.RequireOperator()(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	c := e.NewContext(req, httptest.NewRecorder())
	err := handler(c)
	require.Error(t, err)
	htErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, htErr.Code)
	require.Equal(t, "invalid authorization header format", htErr.Message)
}

func TestRequireOperator_InvalidTokenReturns401(t *testing.T) {
	e := echo.New()
	opMock := &tmocks.OperatorServiceMock{ValidateTokenFn: func(token string) error { return fmt.Errorf("bad") }}
	m := middleware.NewOperatorMiddleware(opMock, logrus.New())
	handler := m.RequireOperator()(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	c := e.NewContext(req, httptest.NewRecorder())
	err := handler(c)
	require.Error(t, err)
	htErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, htErr.Code)
}

func TestRequireOperator_ValidTokenMarksContext(t *testing.T) {
	e := echo.New()
	m := middleware.NewOperatorMiddleware(&tmocks.OperatorServiceMock{}, logrus.New())
	var marked bool
	handler := m.RequireOperator()(func(c echo.Context) error {
		marked = helpers.IsOperator(c)
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer valid")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, handler(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, marked)
}

func TestRateLimit_AdmittedRequestCarriesHeaders(t *testing.T) {
	e := echo.New()
	var gotID string
	limiter := &tmocks.RateLimiterServiceMock{CheckFn: func(ctx context.Context, id string, limit int, window time.Duration) ratelimit.Result {
		gotID = id
		return ratelimit.Result{Admitted: true, Limit: limit, Remaining: 3, ResetAt: time.Unix(1700000000, 0)}
	}}
	m := middleware.NewRateLimitMiddleware(limiter, logrus.New())
	h := m.Limit("export", ratelimit.Policy{Limit: 20, Window: time.Minute})(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "export:198.51.100.4", gotID)
	assert.Equal(t, "20", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1700000000", rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimit_RejectedRequestSkipsHandler(t *testing.T) {
	e := echo.New()
	limiter := &tmocks.RateLimiterServiceMock{CheckFn: func(ctx context.Context, id string, limit int, window time.Duration) ratelimit.Result {
		return ratelimit.Result{Admitted: false, Limit: limit, ResetAt: time.Now().Add(42 * time.Second)}
	}}
	m := middleware.NewRateLimitMiddleware(limiter, logrus.New())
	called := false
	h := m.Limit("verify", ratelimit.Policy{Limit: 20, Window: time.Minute})(func(c echo.Context) error {
		called = true
		return nil
	})

	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"remaining":0`)
}

func newInstruments() middleware.HTTPInstruments {
	return middleware.HTTPInstruments{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "requests"}, []string{"method", "route", "status"}),
		Latency:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "latency"}, []string{"method", "route"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "in_flight"}, []string{"route"}),
	}
}

func TestCollectHTTPMetrics_RecordsResolvedStatus(t *testing.T) {
	e := echo.New()
	in := newInstruments()
	var during float64
	h := middleware.NewMetricsMiddleware(in).CollectHTTPMetrics()(func(c echo.Context) error {
		during = testutil.ToFloat64(in.InFlight.WithLabelValues("/api/v1/analyze"))
		return echo.NewHTTPError(http.StatusForbidden, "no token")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/analyze")
	require.NoError(t, h(c))

	assert.Equal(t, float64(1), during)
	assert.Equal(t, float64(0), testutil.ToFloat64(in.InFlight.WithLabelValues("/api/v1/analyze")))
	assert.Equal(t, float64(1), testutil.ToFloat64(in.Requests.WithLabelValues("POST", "/api/v1/analyze", "403")))
}

func TestCollectHTTPMetrics_SkipsScrapes(t *testing.T) {
	e := echo.New()
	in := newInstruments()
	h := middleware.NewMetricsMiddleware(in).CollectHTTPMetrics()(okHandler)

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), httptest.NewRecorder())
	c.SetPath("/metrics")
	require.NoError(t, h(c))

	assert.Equal(t, 0, testutil.CollectAndCount(in.Requests))
}
