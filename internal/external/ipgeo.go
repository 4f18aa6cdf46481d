package external

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"skycast/internal/types"
)

// DefaultIPGeoEndpoint is the ip-api.com JSON endpoint.
const DefaultIPGeoEndpoint = "http://ip-api.com/json/"

// ipGeoFields limits the ip-api payload to what the lookup reads.
const ipGeoFields = "status,message,lat,lon"

// IPGeoConfig holds the configuration for creating an IPGeoClient.
type IPGeoConfig struct {
	Endpoint string // defaults to DefaultIPGeoEndpoint
	Logger   *slog.Logger
}

type ipGeoResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// IPGeoClient implements GeoLocator by resolving the caller's public IP to
// approximate coordinates.
type IPGeoClient struct {
	base     *BaseClient
	endpoint string
	logger   *slog.Logger
}

// NewIPGeoClient creates an IPGeoClient. Lookups are idempotent, so the
// default retry policy applies.
func NewIPGeoClient(httpClient *http.Client, userAgent string, cfg IPGeoConfig) *IPGeoClient {
	return NewIPGeoClientWithBase(NewBaseClient(httpClient, "ipgeo", DefaultRetryPolicy(), userAgent), cfg)
}

// NewIPGeoClientWithBase creates an IPGeoClient on a pre-configured BaseClient.
func NewIPGeoClientWithBase(base *BaseClient, cfg IPGeoConfig) *IPGeoClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultIPGeoEndpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IPGeoClient{base: base, endpoint: endpoint, logger: logger}
}

// Locate returns the coordinates the endpoint associates with the caller.
// A "fail" status (private range, quota) or a payload without coordinates is
// reported as ErrCodeLocationUnavailable.
func (c *IPGeoClient) Locate(ctx context.Context) (*types.Coordinates, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid geolocation endpoint", err)
	}
	q := u.Query()
	q.Set("fields", ipGeoFields)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create geolocation request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, types.NewHTTPStatusError(resp.StatusCode, ErrorBody(resp))
	}

	body, err := ReadBody(resp)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDecode, "failed to read geolocation response", err)
	}

	var raw ipGeoResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamDecode, "malformed geolocation response", err)
	}

	if raw.Status != "success" {
		c.logger.WarnContext(ctx, "geolocation lookup failed", "status", raw.Status, "message", raw.Message)
		return nil, types.NewAppError(types.ErrCodeLocationUnavailable, "geolocation lookup failed: "+raw.Message, nil)
	}
	if raw.Lat == nil || raw.Lon == nil {
		return nil, types.NewAppError(types.ErrCodeLocationUnavailable, "geolocation response has no coordinates", nil)
	}

	return &types.Coordinates{Lat: *raw.Lat, Lon: *raw.Lon}, nil
}
