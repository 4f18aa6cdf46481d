package types

import (
	"context"
	"time"
)

// LocationStore persists the single saved location. Implementations must make
// SetLocation and ClearLocation atomic: the flag and both coordinates change
// together or not at all.
type LocationStore interface {
	// IsLocationSet reports the presence flag. Uninitialized storage reads as false.
	IsLocationSet(ctx context.Context) (bool, error)

	// GetLocation returns nil unless the flag is set and both coordinates are present.
	GetLocation(ctx context.Context) (*Coordinates, error)

	SetLocation(ctx context.Context, c Coordinates) error
	ClearLocation(ctx context.Context) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}
