package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPInstruments are the collectors fed by MetricsMiddleware.
type HTTPInstruments struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

type MetricsMiddleware struct {
	in HTTPInstruments
}

func NewMetricsMiddleware(in HTTPInstruments) *MetricsMiddleware {
	return &MetricsMiddleware{in: in}
}

// CollectHTTPMetrics records every request except scrapes of /metrics.
// Unmatched paths share one label so probes cannot inflate cardinality.
func (m *MetricsMiddleware) CollectHTTPMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "/metrics" {
				return next(c)
			}
			if route == "" {
				route = "unmatched"
			}

			inFlight := m.in.InFlight.WithLabelValues(route)
			inFlight.Inc()
			start := time.Now()

			// Resolve the error here so the status label matches what the client sees.
			if err := next(c); err != nil {
				c.Error(err)
			}

			inFlight.Dec()
			method := c.Request().Method
			m.in.Requests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.in.Latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
