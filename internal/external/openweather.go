package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"skycast/internal/types"
)

// DefaultWeatherEndpoint is the OpenWeatherMap current-weather endpoint.
const DefaultWeatherEndpoint = "https://api.openweathermap.org/data/2.5/weather"

// iconURLFormat is the public icon URL contract.
const iconURLFormat = "https://openweathermap.org/img/wn/%s@4x.png"

// IconURL returns the 4x icon image URL for an icon id such as "01d".
func IconURL(iconID string) string {
	return fmt.Sprintf(iconURLFormat, iconID)
}

// OpenWeatherConfig holds the configuration for creating an OpenWeatherClient.
type OpenWeatherConfig struct {
	APIKey   string
	Endpoint string // defaults to DefaultWeatherEndpoint
	Logger   *slog.Logger
}

// owmResponse mirrors the subset of the current-weather payload SkyCast reads.
// Main is a pointer so a missing object is distinguishable from zero values.
type owmResponse struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Name string `json:"name"`
}

// OpenWeatherClient implements WeatherFetcher against the OpenWeatherMap
// current-weather API. Each call issues exactly one GET: no retries and no
// caching.
type OpenWeatherClient struct {
	base     *BaseClient
	apiKey   string
	endpoint string
	logger   *slog.Logger
}

// NewOpenWeatherClient creates an OpenWeatherClient with a single-attempt
// policy. Its breaker never opens: every FetchWeather sends exactly one
// request and a 5xx is always reported with its status, however many
// failures preceded it.
func NewOpenWeatherClient(httpClient *http.Client, userAgent string, cfg OpenWeatherConfig) *OpenWeatherClient {
	base := NewBaseClientWithBreaker(httpClient, NewPassThroughBreaker("openweather"), NoRetryPolicy(), userAgent)
	return NewOpenWeatherClientWithBase(base, cfg)
}

// NewOpenWeatherClientWithBase creates an OpenWeatherClient on a
// pre-configured BaseClient.
func NewOpenWeatherClientWithBase(base *BaseClient, cfg OpenWeatherConfig) *OpenWeatherClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultWeatherEndpoint
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenWeatherClient{
		base:     base,
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		logger:   logger,
	}
}

// FetchWeather retrieves current conditions for the given coordinates.
//
// Failures map onto:
//   - ErrCodeUpstreamNetwork for transport failures and an open breaker
//   - ErrCodeUpstreamHTTPStatus (status in Details) for any non-2xx response
//   - ErrCodeUpstreamDecode for malformed bodies or a missing "main" object
func (c *OpenWeatherClient) FetchWeather(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	reqURL, err := c.buildURL(lat, lon)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid weather endpoint", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.base.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "weather request failed",
			"code", string(types.CodeOf(err)),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "weather request rejected", "status", resp.StatusCode)
		return nil, types.NewHTTPStatusError(resp.StatusCode, ErrorBody(resp))
	}

	body, err := ReadBody(resp)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDecode, "failed to read weather response", err)
	}

	snapshot, err := decodeWeather(body)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "weather fetched",
		"place", snapshot.PlaceName,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snapshot, nil
}

func (c *OpenWeatherClient) buildURL(lat, lon float64) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeWeather maps a current-weather payload onto a WeatherSnapshot.
func decodeWeather(body []byte) (*types.WeatherSnapshot, error) {
	var raw owmResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDecode, "malformed weather response", err)
	}
	if raw.Main == nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDecode, "weather response missing main object", nil)
	}

	conditions := make([]types.Condition, 0, len(raw.Weather))
	for _, w := range raw.Weather {
		conditions = append(conditions, types.Condition{
			Summary:     w.Main,
			Description: w.Description,
			IconID:      w.Icon,
		})
	}

	return &types.WeatherSnapshot{
		Coord:       types.Coordinates{Lat: raw.Coord.Lat, Lon: raw.Coord.Lon},
		Conditions:  conditions,
		Temperature: raw.Main.Temp,
		Humidity:    raw.Main.Humidity,
		Pressure:    raw.Main.Pressure,
		WindSpeed:   raw.Wind.Speed,
		CountryCode: raw.Sys.Country,
		PlaceName:   raw.Name,
	}, nil
}
