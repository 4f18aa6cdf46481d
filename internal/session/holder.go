// Package session holds the per-session view state: the coordinates the
// current session is working with and the weather fetch that uses them.
// Nothing here is persisted.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"skycast/internal/types"
)

// sharedFetchTimeout bounds a coalesced fetch started by a caller without a
// deadline.
const sharedFetchTimeout = 30 * time.Second

// WeatherFetcher retrieves current conditions for a coordinate pair.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error)
}

// Metrics records weather fetch outcomes.
type Metrics interface {
	RecordWeatherFetch(ctx context.Context, result string, duration time.Duration)
}

// Holder is the view state for one session (one CLI run, one API process).
// It is safe for concurrent use.
type Holder struct {
	id      string
	weather WeatherFetcher
	metrics Metrics
	logger  *slog.Logger

	mu     sync.RWMutex
	coords *types.Coordinates

	group      singleflight.Group
	refreshing atomic.Int32
}

// Option configures a Holder.
type Option func(*Holder)

// WithMetrics records every fetch through m.
func WithMetrics(m Metrics) Option {
	return func(h *Holder) { h.metrics = m }
}

// WithLogger sets the logger; the session id is attached to every line.
func WithLogger(l *slog.Logger) Option {
	return func(h *Holder) { h.logger = l }
}

// NewHolder creates a Holder with a fresh session id.
func NewHolder(weather WeatherFetcher, opts ...Option) *Holder {
	h := &Holder{
		id:      "ses_" + uuid.New().String(),
		weather: weather,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("session_id", h.id)
	return h
}

// ID returns the session id used for log correlation.
func (h *Holder) ID() string { return h.id }

// StoredCoordinates returns a copy of the session coordinates, or nil.
func (h *Holder) StoredCoordinates() *types.Coordinates {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.coords == nil {
		return nil
	}
	c := *h.coords
	return &c
}

// SetCoordinates replaces the session coordinates.
func (h *Holder) SetCoordinates(c types.Coordinates) {
	h.mu.Lock()
	h.coords = &c
	h.mu.Unlock()
}

// Reset forgets the session coordinates.
func (h *Holder) Reset() {
	h.mu.Lock()
	h.coords = nil
	h.mu.Unlock()
}

// FetchWeather delegates to the weather client. The result is not cached.
func (h *Holder) FetchWeather(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	start := time.Now()
	snap, err := h.weather.FetchWeather(types.WithSessionID(ctx, h.id), lat, lon)

	result := types.ResultSuccess
	if err != nil {
		result = types.ResultFailure
		h.logger.WarnContext(ctx, "weather fetch failed", "error", err)
	}
	if h.metrics != nil {
		h.metrics.RecordWeatherFetch(ctx, result, time.Since(start))
	}
	return snap, err
}

// Refresh fetches weather for the session coordinates. Overlapping calls
// for the same coordinates share one upstream request.
//
// The shared request runs detached from the caller that started it, bounded
// by that caller's deadline (or sharedFetchTimeout when it has none). A
// caller whose ctx ends stops waiting and gets its own ctx error; the others
// still receive the shared result.
func (h *Holder) Refresh(ctx context.Context) (*types.WeatherSnapshot, error) {
	coords := h.StoredCoordinates()
	if coords == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundLocation, "location not set", nil)
	}

	h.refreshing.Add(1)
	defer h.refreshing.Add(-1)

	ch := h.group.DoChan(coords.String(), func() (any, error) {
		fetchCtx, cancel := detachedFetchContext(ctx)
		defer cancel()
		return h.FetchWeather(fetchCtx, coords.Lat, coords.Lon)
	})

	select {
	case <-ctx.Done():
		h.logger.DebugContext(ctx, "refresh abandoned by caller", "error", ctx.Err())
		return nil, types.NewAppError(types.ErrCodeUpstreamNetwork, "refresh cancelled", ctx.Err())
	case res := <-ch:
		if res.Shared {
			h.logger.DebugContext(ctx, "refresh coalesced", "coordinates", coords.String())
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.WeatherSnapshot), nil
	}
}

// detachedFetchContext keeps ctx's values but not its cancellation, so one
// departing caller cannot fail a request others are waiting on.
func detachedFetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithTimeout(detached, sharedFetchTimeout)
}

// Refreshing reports whether a Refresh is in progress.
func (h *Holder) Refreshing() bool {
	return h.refreshing.Load() > 0
}
