// Package core provides the API chassis for SkyCast. It creates a chi router
// and enforces cross-cutting concerns (panic recovery, request IDs, logging,
// metrics and error envelopes) before requests reach domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skycast/internal/config"
)

// Server encapsulates the dependencies of the SkyCast API.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are populated
	// by the entry point so that core does not import handler packages.
	V1RouteRegistrars []func(chi.Router)

	drainHooks []func()
	closers    []io.Closer
	router     *chi.Mux
}

// NewServer validates its inputs and prepares the router. Routes are mounted
// separately via MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a resource to be closed by Shutdown, in reverse order
// of registration.
func (s *Server) OnShutdown(c io.Closer) {
	s.closers = append(s.closers, c)
}

// OnDrain registers fn to run by Drain, in registration order.
func (s *Server) OnDrain(fn func()) {
	s.drainHooks = append(s.drainHooks, fn)
}

// Drain runs the drain hooks. Call it before http.Server.Shutdown:
// Shutdown waits for active handlers but never cancels their contexts, so
// long-running work (a pending fresh location fix) must be aborted first or
// it holds the drain open until its own timeout.
func (s *Server) Drain() {
	for _, fn := range s.drainHooks {
		fn()
	}
}

// Shutdown releases registered resources (the location store connection).
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.Logger.Error("error closing resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing resources: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
