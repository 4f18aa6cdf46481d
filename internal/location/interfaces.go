// Package location acquires the device position. Acquisition is gated by a
// single permission and tries two tiers: the last-known fix, then a fresh
// high-accuracy fix that can be cancelled.
package location

import (
	"context"

	"skycast/internal/types"
)

// Priority is the accuracy/power trade-off requested for a fresh fix.
type Priority int

const (
	PriorityHighAccuracy Priority = iota
	PriorityBalanced
)

func (p Priority) String() string {
	switch p {
	case PriorityHighAccuracy:
		return "high_accuracy"
	case PriorityBalanced:
		return "balanced"
	default:
		return "unknown"
	}
}

// PermissionChecker reports whether fine location access is granted.
type PermissionChecker interface {
	HasFineLocation(ctx context.Context) bool
}

// Provider is the platform location service.
//
// LastKnown returns the most recent cached fix, or nil when none exists.
// CurrentFix obtains a fresh fix and must return promptly once ctx is done.
type Provider interface {
	LastKnown(ctx context.Context) (*types.Coordinates, error)
	CurrentFix(ctx context.Context, priority Priority) (*types.Coordinates, error)
}

// SessionCache receives every successful fix for the running session.
type SessionCache interface {
	SetCoordinates(c types.Coordinates)
}

// Metrics records acquisition outcomes.
type Metrics interface {
	RecordLocationAcquire(ctx context.Context, source types.FixSource, result string)
}
