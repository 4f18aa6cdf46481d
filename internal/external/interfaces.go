package external

import (
	"context"

	"skycast/internal/types"
)

// WeatherFetcher retrieves current conditions for a coordinate pair.
// Implementations issue one upstream request per call and never cache.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error)
}

// GeoLocator resolves an approximate position for the running host.
type GeoLocator interface {
	Locate(ctx context.Context) (*types.Coordinates, error)
}

var (
	_ WeatherFetcher = (*OpenWeatherClient)(nil)
	_ GeoLocator     = (*IPGeoClient)(nil)
)
