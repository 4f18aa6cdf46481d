// Package main implements the skycast command-line front end.
//
// Usage:
//
//	skycast weather             # resolve the location, then show the dashboard
//	skycast weather --lat=51.5 --lon=-0.12
//	skycast locate [--force]    # acquire and save the device location
//	skycast show                # print the saved location
//	skycast forget              # clear the saved location
//	skycast version
//
// Configuration comes from the environment (or a .env file). Logs go to
// stderr; results go to stdout. Any failure exits with status 1.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"skycast/internal/config"
	"skycast/internal/dashboard"
	"skycast/internal/db"
	"skycast/internal/external"
	"skycast/internal/location"
	"skycast/internal/session"
	"skycast/internal/telemetry"
	"skycast/internal/types"
)

const usage = `SkyCast: current weather for where you are.

Usage:
  skycast <command> [flags]

Commands:
  weather   Show the weather dashboard (--lat/--lon override the saved location)
  locate    Acquire and save the device location (--force skips the saved one)
  show      Print the saved location
  forget    Clear the saved location
  version   Print build information
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app holds the components one CLI invocation works with.
type app struct {
	store    db.LocationBackend
	holder   *session.Holder
	acquirer *location.Acquirer
	logger   *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	metrics, err := telemetry.New(ctx, cfg.Metrics, logger.With("component", "telemetry"))
	if err != nil {
		return nil, fmt.Errorf("creating metrics recorder: %w", err)
	}

	store, err := db.OpenLocationStore(ctx, cfg.Store, logger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("opening location store: %w", err)
	}

	clients := external.NewClientRegistry(cfg, logger.With("component", "external"))

	holder := session.NewHolder(clients.Weather,
		session.WithMetrics(metrics),
		session.WithLogger(logger.With("component", "session")),
	)

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

	return &app{store: store, holder: holder, acquirer: acquirer, logger: logger}, nil
}

func (a *app) Close() error { return a.store.Close() }

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	cmd, cmdArgs := args[0], args[1:]
	if cmd == "version" {
		fmt.Fprintln(stdout, config.NewBuildInfo().String())
		return 0
	}

	var handler func(context.Context, *app, []string, io.Writer) error
	switch cmd {
	case "weather":
		handler = cmdWeather
	case "locate":
		handler = cmdLocate
	case "show":
		handler = cmdShow
	case "forget":
		handler = cmdForget
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 1
	}

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	logger := newLogger(cfg.LogLevel, stderr)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "startup error: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing location store", "error", err)
		}
	}()

	if err := handler(ctx, a, cmdArgs, stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func cmdWeather(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("weather", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	lat := fs.Float64("lat", 0, "latitude in decimal degrees")
	lon := fs.Float64("lon", 0, "longitude in decimal degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	switch {
	case explicit["lat"] != explicit["lon"]:
		return fmt.Errorf("--lat and --lon must be given together")
	case explicit["lat"]:
		coords := types.Coordinates{Lat: *lat, Lon: *lon}
		if err := coords.Validate(); err != nil {
			return err
		}
		a.holder.SetCoordinates(coords)
	default:
		if _, err := a.acquirer.ResolveLocation(ctx); err != nil && !types.IsCode(err, types.ErrCodeInternalStorage) {
			return fmt.Errorf("%s (%s)", dashboard.MessageLocationNotSet, locationFailure(err))
		}
	}

	snap, err := a.holder.Refresh(ctx)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundLocation) {
			return fmt.Errorf("%s", dashboard.MessageLocationNotSet)
		}
		return fmt.Errorf("%s", dashboard.FailureMessage(err))
	}

	fmt.Fprint(stdout, dashboard.Build(snap).Text())
	return nil
}

func cmdLocate(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("locate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "ignore the saved location and acquire a new fix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		fix types.Fix
		err error
	)
	if *force {
		fix, err = a.acquirer.AcquireLocation(ctx)
	} else {
		fix, err = a.acquirer.ResolveLocation(ctx)
	}
	if err != nil && fix.Source == "" {
		return fmt.Errorf("%s", locationFailure(err))
	}

	fmt.Fprintf(stdout, "Location: %s (%s)\n", fix.Coordinates, fix.Source)
	if err != nil {
		a.logger.Warn("location acquired but not saved", "error", err)
		fmt.Fprintln(stdout, "Warning: the location could not be saved.")
	}
	return nil
}

func cmdShow(ctx context.Context, a *app, _ []string, stdout io.Writer) error {
	coords, err := a.store.GetLocation(ctx)
	if err != nil {
		return err
	}
	if coords == nil {
		fmt.Fprintln(stdout, dashboard.MessageLocationNotSet)
		return nil
	}
	fmt.Fprintf(stdout, "Location: %s\n", coords)
	return nil
}

func cmdForget(ctx context.Context, a *app, _ []string, stdout io.Writer) error {
	if err := a.store.ClearLocation(ctx); err != nil {
		return err
	}
	a.holder.Reset()
	fmt.Fprintln(stdout, "Saved location cleared.")
	return nil
}

// locationFailure words acquisition errors for the terminal.
func locationFailure(err error) string {
	switch types.CodeOf(err) {
	case types.ErrCodePermissionDenied:
		return "Location permission is not granted."
	case types.ErrCodeLocationUnavailable:
		return "Could not determine the current location."
	default:
		return err.Error()
	}
}

// newLogger creates a text slog.Logger on w for the given level name.
func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
