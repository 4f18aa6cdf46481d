// Package main is the entry point for the SkyCast API server.
//
// It loads configuration, opens the location store, builds the outbound
// clients and the session state, and serves the HTTP facade until SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"skycast/internal/api/handlers"
	"skycast/internal/config"
	"skycast/internal/core"
	"skycast/internal/db"
	"skycast/internal/external"
	"skycast/internal/location"
	"skycast/internal/session"
	"skycast/internal/telemetry"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("skycast API starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}

	return serve(ctx, srv, cfg, logger)
}

// buildServer wires every component behind the HTTP facade. Resources that
// need closing are registered with the server's shutdown hook.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	metrics, err := telemetry.New(ctx, cfg.Metrics, logger.With("component", "telemetry"))
	if err != nil {
		return nil, fmt.Errorf("creating metrics recorder: %w", err)
	}
	srv.Metrics = metrics

	store, err := db.OpenLocationStore(ctx, cfg.Store, logger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("opening location store: %w", err)
	}
	srv.OnShutdown(store)
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{ProbeName: "location_store", Fn: store.Ping})

	clients := external.NewClientRegistry(cfg, logger.With("component", "external"))

	holder := session.NewHolder(clients.Weather,
		session.WithMetrics(metrics),
		session.WithLogger(logger.With("component", "session")),
	)
	if saved, err := store.GetLocation(ctx); err != nil {
		logger.Warn("could not read saved location at startup", "error", err)
	} else if saved != nil {
		holder.SetCoordinates(*saved)
	}

	acquirer := location.NewAcquirer(location.AcquirerConfig{
		Permission: location.NewConfigPermissionChecker(cfg.Location.Permission),
		Provider: location.NewChainProvider(
			location.NewStaticProviderFromConfig(cfg.Location.LastKnownLat, cfg.Location.LastKnownLon),
			location.NewIPGeolocationProvider(clients.Geo),
		),
		Store:      store,
		Cache:      holder,
		Metrics:    metrics,
		Logger:     logger.With("component", "location"),
		FixTimeout: cfg.Location.FixTimeout,
	})

	srv.OnDrain(func() {
		if n := acquirer.InFlight(); n > 0 {
			logger.Info("cancelling pending location fixes", "count", n)
		}
		acquirer.Cancel()
	})

	locationHandler := handlers.NewLocationHandler(store, acquirer, holder, srv.Validator, logger)
	weatherHandler := handlers.NewWeatherHandler(holder, logger)
	dashboardHandler := handlers.NewDashboardHandler(holder, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Route("/location", locationHandler.RegisterRoutes)
		r.Route("/weather", weatherHandler.RegisterRoutes)
		r.Route("/dashboard", dashboardHandler.RegisterRoutes)
	})

	srv.MountRoutes()
	return srv, nil
}

// serve runs the HTTP server until ctx is cancelled, then drains requests and
// releases server resources.
func serve(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.Drain()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a JSON slog.Logger for the given level name.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
