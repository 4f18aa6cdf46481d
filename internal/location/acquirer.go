package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"skycast/internal/types"
)

// Acquirer obtains the device location and persists it.
//
// The fresh-fix tier runs under a cancellable child context. Cancel aborts
// every in-flight fresh fix, which is how a front end tears down an
// acquisition it no longer needs.
type Acquirer struct {
	permission PermissionChecker
	provider   Provider
	store      types.LocationStore
	cache      SessionCache
	metrics    Metrics
	clock      types.Clock
	logger     *slog.Logger
	fixTimeout time.Duration

	mu       sync.Mutex
	nextID   uint64
	inFlight map[uint64]context.CancelFunc
}

// AcquirerConfig holds the collaborators of an Acquirer. Cache, Metrics,
// Clock and Logger are optional.
type AcquirerConfig struct {
	Permission PermissionChecker
	Provider   Provider
	Store      types.LocationStore
	Cache      SessionCache
	Metrics    Metrics
	Clock      types.Clock
	Logger     *slog.Logger

	// FixTimeout bounds a fresh fix. Zero means no bound beyond the caller's ctx.
	FixTimeout time.Duration
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(cfg AcquirerConfig) *Acquirer {
	a := &Acquirer{
		permission: cfg.Permission,
		provider:   cfg.Provider,
		store:      cfg.Store,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		fixTimeout: cfg.FixTimeout,
		inFlight:   make(map[uint64]context.CancelFunc),
	}
	if a.clock == nil {
		a.clock = types.RealClock{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// AcquireLocation checks permission, then tries the last-known fix, then a
// fresh high-accuracy fix. A last-known fix is used regardless of its age.
//
// On success the fix is persisted and handed to the session cache. If
// persisting fails the fix is still returned, together with an
// ErrCodeInternalStorage error, and the session cache is still updated.
func (a *Acquirer) AcquireLocation(ctx context.Context) (types.Fix, error) {
	if !a.permission.HasFineLocation(ctx) {
		a.logger.InfoContext(ctx, "location permission denied")
		return types.Fix{}, types.NewAppError(types.ErrCodePermissionDenied, "location permission not granted", nil)
	}

	coords, err := a.provider.LastKnown(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to get last location", "error", err)
	}
	if err == nil && coords != nil {
		return a.complete(ctx, *coords, types.FixSourceLastKnown)
	}

	coords, err = a.currentFix(ctx)
	if err != nil {
		a.record(ctx, types.FixSourceFresh, types.ResultFailure)
		a.logger.WarnContext(ctx, "failed to get location", "error", err)
		return types.Fix{}, types.NewAppError(types.ErrCodeLocationUnavailable, "failed to get location", err)
	}
	if coords == nil {
		a.record(ctx, types.FixSourceFresh, types.ResultFailure)
		return types.Fix{}, types.NewAppError(types.ErrCodeLocationUnavailable, "no location fix available", nil)
	}

	return a.complete(ctx, *coords, types.FixSourceFresh)
}

// ResolveLocation returns the saved location when there is one, without
// consulting the permission checker or the provider. Otherwise it acquires
// a new fix. A storage failure while reading is logged and treated as
// "no saved location".
func (a *Acquirer) ResolveLocation(ctx context.Context) (types.Fix, error) {
	stored, err := a.store.GetLocation(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to read saved location; acquiring", "error", err)
	}
	if err == nil && stored != nil {
		if a.cache != nil {
			a.cache.SetCoordinates(*stored)
		}
		a.record(ctx, types.FixSourceStored, types.ResultSuccess)
		return types.Fix{Coordinates: *stored, Source: types.FixSourceStored, At: a.clock.Now()}, nil
	}

	return a.AcquireLocation(ctx)
}

// Cancel aborts every in-flight fresh fix. It is safe to call at any time.
func (a *Acquirer) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, cancel := range a.inFlight {
		cancel()
		delete(a.inFlight, id)
	}
}

// InFlight reports how many fresh fixes are pending.
func (a *Acquirer) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inFlight)
}

func (a *Acquirer) currentFix(ctx context.Context) (*types.Coordinates, error) {
	fixCtx, cancel := context.WithCancel(ctx)
	if a.fixTimeout > 0 {
		var cancelTimeout context.CancelFunc
		fixCtx, cancelTimeout = context.WithTimeout(fixCtx, a.fixTimeout)
		defer cancelTimeout()
	}

	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.inFlight[id] = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.inFlight, id)
		a.mu.Unlock()
		cancel()
	}()

	coords, err := a.provider.CurrentFix(fixCtx, PriorityHighAccuracy)
	if err == nil && fixCtx.Err() != nil {
		// A provider that ignores cancellation must not resurrect the request.
		err = fixCtx.Err()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.InfoContext(ctx, "fresh location request cancelled")
		}
		return nil, err
	}
	return coords, nil
}

func (a *Acquirer) complete(ctx context.Context, coords types.Coordinates, source types.FixSource) (types.Fix, error) {
	if err := coords.Validate(); err != nil {
		a.record(ctx, source, types.ResultFailure)
		return types.Fix{}, types.NewAppError(types.ErrCodeLocationUnavailable, "provider returned invalid coordinates", err)
	}

	fix := types.Fix{Coordinates: coords, Source: source, At: a.clock.Now()}

	storeErr := a.store.SetLocation(ctx, coords)
	if a.cache != nil {
		a.cache.SetCoordinates(coords)
	}
	a.record(ctx, source, types.ResultSuccess)

	if storeErr != nil {
		a.logger.ErrorContext(ctx, "failed to save location", "error", storeErr)
		if types.CodeOf(storeErr) != types.ErrCodeInternalStorage {
			storeErr = types.NewAppError(types.ErrCodeInternalStorage, "failed to save location", storeErr)
		}
		return fix, storeErr
	}

	a.logger.InfoContext(ctx, "location acquired", "source", string(source))
	return fix, nil
}

func (a *Acquirer) record(ctx context.Context, source types.FixSource, result string) {
	if a.metrics != nil {
		a.metrics.RecordLocationAcquire(ctx, source, result)
	}
}
