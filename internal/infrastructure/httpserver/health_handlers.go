package httpserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName    = "clauseguard"
	serviceVersion = "1.0.0"
	healthBudget   = 2 * time.Second
)

type healthReport struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Version      string            `json:"version"`
	Timestamp    string            `json:"timestamp"`
	Dependencies map[string]string `json:"dependencies"`
}

// healthCheck probes every dependency in parallel under one shared deadline.
// Any failure degrades the report to 503 so load balancers stop routing paid
// traffic to an instance that cannot issue or redeem tokens.
func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthBudget)
	defer cancel()

	report := healthReport{
		Status:       "healthy",
		Service:      serviceName,
		Version:      serviceVersion,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Dependencies: make(map[string]string, len(s.healthCheckers)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, hc := range s.healthCheckers {
		if hc == nil {
			continue
		}
		g.Go(func() error {
			err := hc.Check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Dependencies[hc.Name()] = "unhealthy"
				report.Status = "degraded"
				s.logger.WithField("dependency", hc.Name()).WithError(err).Warn("health check failed")
				return nil
			}
			report.Dependencies[hc.Name()] = "healthy"
			return nil
		})
	}
	_ = g.Wait()

	code := http.StatusOK
	if report.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}
