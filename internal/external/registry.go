package external

import (
	"log/slog"
	"net/http"

	"skycast/internal/config"
)

// ClientRegistry holds the outbound API clients. It is the single point of
// access for the rest of the application to third-party services.
type ClientRegistry struct {
	Weather WeatherFetcher
	Geo     GeoLocator
}

// NewClientRegistry builds the clients from configuration. Both share the
// configured timeout and a User-Agent carrying the build version.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	userAgent := cfg.Build.UserAgent(cfg.Weather.UserAgent)
	httpClient := &http.Client{Timeout: cfg.Weather.Timeout}

	logger.Info("initializing external clients",
		"environment", cfg.Environment,
		"weather_endpoint", cfg.Weather.Endpoint,
		"ip_geo_endpoint", cfg.Location.IPGeoEndpoint,
	)

	return &ClientRegistry{
		Weather: NewOpenWeatherClient(httpClient, userAgent, OpenWeatherConfig{
			APIKey:   cfg.Weather.APIKey.Unmask(),
			Endpoint: cfg.Weather.Endpoint,
			Logger:   logger.With("client", "openweather"),
		}),
		Geo: NewIPGeoClient(httpClient, userAgent, IPGeoConfig{
			Endpoint: cfg.Location.IPGeoEndpoint,
			Logger:   logger.With("client", "ipgeo"),
		}),
	}
}
