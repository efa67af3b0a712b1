package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	// Slow header senders are cut off well before the body limits apply.
	readHeaderTimeout = 10 * time.Second
	maxHeaderBytes    = 64 << 10
)

// Start serves until Shutdown is called. The listener is one of echo's own
// servers so that Shutdown drains in-flight analyses instead of abandoning them.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	s.logger.WithField("routes", len(s.echo.Routes())).Debug("registered HTTP routes")

	var (
		srv *http.Server
		err error
	)
	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		srv, err = s.tlsServer(addr)
		if err != nil {
			return err
		}
		s.logger.Infof("Serving HTTPS on %s", addr)
	} else {
		srv = s.echo.Server
		srv.Addr = addr
		s.logger.Infof("Serving HTTP on %s", addr)
		if s.config.Environment == "production" {
			s.logger.Warn("TLS is not configured; terminate it at the load balancer")
		}
	}

	srv.ReadTimeout = s.config.ReadTimeout
	srv.ReadHeaderTimeout = readHeaderTimeout
	srv.WriteTimeout = s.config.WriteTimeout
	srv.IdleTimeout = s.config.IdleTimeout
	srv.MaxHeaderBytes = maxHeaderBytes

	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) tlsServer(addr string) (*http.Server, error) {
	cert, err := tls.LoadX509KeyPair(s.config.TLSCertFile, s.config.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	srv := s.echo.TLSServer
	srv.Addr = addr
	srv.TLSConfig = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	return srv, nil
}

// Shutdown stops accepting connections and waits for handlers to return or
// ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests and embedding.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
