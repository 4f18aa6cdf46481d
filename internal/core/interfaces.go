package core

import (
	"context"
	"time"
)

// MetricsCollector records API telemetry (request count and latency).
type MetricsCollector interface {
	RecordAPIRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration)
}

// HealthProbe defines the interface for a subsystem health check.
// Each probe represents a dependency (the location store) that must be
// operational for the service to function correctly.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe (e.g., "location_store").
	Name() string

	// Check performs the health check against the subsystem.
	// It should respect the context deadline.
	Check(ctx context.Context) error
}

// ProbeFunc adapts a check function into a named HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string { return p.ProbeName }

func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }
