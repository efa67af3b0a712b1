package httpserver

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	customMiddleware "github.com/avatarctic/clauseguard/internal/infrastructure/httpserver/middleware"
)

var (
	instrumentsOnce sync.Once
	instruments     customMiddleware.HTTPInstruments
)

// httpInstruments registers the HTTP collectors with the default registry the
// first time a server is built; later servers in the same process share them.
func httpInstruments() customMiddleware.HTTPInstruments {
	instrumentsOnce.Do(func() {
		instruments = customMiddleware.HTTPInstruments{
			Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "clauseguard_http_requests_total",
				Help: "HTTP requests by method, route and status",
			}, []string{"method", "route", "status"}),
			// Analysis requests wait on the model for up to a minute.
			Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "clauseguard_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: []float64{0.01, 0.05, 0.25, 1, 2.5, 5, 10, 20, 40, 60, 90},
			}, []string{"method", "route"}),
			InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "clauseguard_http_requests_in_flight",
				Help: "Requests currently being served, by route",
			}, []string{"route"}),
		}
		prometheus.MustRegister(instruments.Requests, instruments.Latency, instruments.InFlight)
	})
	return instruments
}

func (s *Server) metricsEndpoint() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      s.logger,
			ErrorHandling: promhttp.ContinueOnError,
		}),
	))
}
