package location

import (
	"context"

	"skycast/internal/types"
)

// StaticProvider serves a fixed, preconfigured position. A nil position
// means no fix is available.
type StaticProvider struct {
	coords *types.Coordinates
}

// NewStaticProvider returns a StaticProvider for coords, which may be nil.
func NewStaticProvider(coords *types.Coordinates) *StaticProvider {
	return &StaticProvider{coords: coords}
}

// NewStaticProviderFromConfig builds a StaticProvider from the optional
// last-known latitude/longitude pair. Both must be set.
func NewStaticProviderFromConfig(lat, lon *float64) *StaticProvider {
	if lat == nil || lon == nil {
		return &StaticProvider{}
	}
	return &StaticProvider{coords: &types.Coordinates{Lat: *lat, Lon: *lon}}
}

func (p *StaticProvider) LastKnown(context.Context) (*types.Coordinates, error) {
	return p.clone(), nil
}

func (p *StaticProvider) CurrentFix(ctx context.Context, _ Priority) (*types.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.clone(), nil
}

func (p *StaticProvider) clone() *types.Coordinates {
	if p.coords == nil {
		return nil
	}
	c := *p.coords
	return &c
}

// GeoLocator resolves an approximate position, typically from the public IP.
type GeoLocator interface {
	Locate(ctx context.Context) (*types.Coordinates, error)
}

// IPGeolocationProvider obtains fresh fixes from a GeoLocator. It keeps no
// cache, so LastKnown is always empty.
type IPGeolocationProvider struct {
	locator GeoLocator
}

// NewIPGeolocationProvider wraps locator.
func NewIPGeolocationProvider(locator GeoLocator) *IPGeolocationProvider {
	return &IPGeolocationProvider{locator: locator}
}

func (p *IPGeolocationProvider) LastKnown(context.Context) (*types.Coordinates, error) {
	return nil, nil
}

// CurrentFix ignores priority: IP lookups have a single accuracy level.
func (p *IPGeolocationProvider) CurrentFix(ctx context.Context, _ Priority) (*types.Coordinates, error) {
	return p.locator.Locate(ctx)
}

// ChainProvider takes last-known fixes from one provider and fresh fixes
// from another.
type ChainProvider struct {
	last  Provider
	fresh Provider
}

// NewChainProvider combines last and fresh.
func NewChainProvider(last, fresh Provider) *ChainProvider {
	return &ChainProvider{last: last, fresh: fresh}
}

func (p *ChainProvider) LastKnown(ctx context.Context) (*types.Coordinates, error) {
	return p.last.LastKnown(ctx)
}

func (p *ChainProvider) CurrentFix(ctx context.Context, priority Priority) (*types.Coordinates, error) {
	return p.fresh.CurrentFix(ctx, priority)
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = (*IPGeolocationProvider)(nil)
	_ Provider = (*ChainProvider)(nil)
)
