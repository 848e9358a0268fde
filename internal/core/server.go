// Package core provides the HTTP chassis for the vigil control API. It builds
// a chi router, applies the cross-cutting middleware (panic recovery, request
// ids, structured request logs, timeouts) and leaves the domain routes to
// registrars supplied by the entry point.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the control API's dependencies and router.
type Server struct {
	Logger  *slog.Logger
	Metrics MetricsCollector

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are populated by
	// main.go so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	// RequestTimeout bounds each request context. Zero uses defaultRequestTimeout.
	RequestTimeout time.Duration

	router *chi.Mux

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// NewServer prepares a server. Callers register routes and then call
// MountRoutes before serving.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe serves the router on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.http = srv
	s.mu.Unlock()

	s.Logger.Info("control api listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control api: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.Logger.Error("error draining control api", "error", err)
		return fmt.Errorf("shutting down control api: %w", err)
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
