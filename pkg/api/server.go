// Package api provides HTTP API server components.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/klaxon/klaxon/config"
	"github.com/klaxon/klaxon/pkg/logger"
)

// Server is the lifecycle contract of the HTTP surface.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPServer serves the router over a net/http server with the
// configured timeouts.
type HTTPServer struct {
	srv *http.Server
	log logger.Logger
}

// NewHTTPServer builds the router and wraps it in a server bound to the
// configured host and port.
func NewHTTPServer(cfg *config.Config, log logger.Logger, handlers *Handlers) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:      NewRouter(cfg, log, handlers),
			ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
			WriteTimeout: cfg.Server.HTTP.WriteTimeout,
			IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
		},
		log: log,
	}
}

// Start listens and serves until Shutdown. A clean shutdown is not an
// error.
func (s *HTTPServer) Start() error {
	s.log.Info("HTTP server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP server draining")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}
