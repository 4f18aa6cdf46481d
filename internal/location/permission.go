package location

import (
	"context"

	"skycast/internal/config"
)

// ConfigPermissionChecker answers from the LOCATION_PERMISSION setting.
type ConfigPermissionChecker struct {
	granted bool
}

// NewConfigPermissionChecker grants access unless permission is "denied".
func NewConfigPermissionChecker(permission string) *ConfigPermissionChecker {
	return &ConfigPermissionChecker{granted: permission != config.PermissionDenied}
}

func (c *ConfigPermissionChecker) HasFineLocation(context.Context) bool {
	return c.granted
}

// PermissionFunc adapts a function to PermissionChecker.
type PermissionFunc func(ctx context.Context) bool

func (f PermissionFunc) HasFineLocation(ctx context.Context) bool { return f(ctx) }
