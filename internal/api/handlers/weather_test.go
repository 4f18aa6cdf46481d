package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skycast/internal/types"
)

type fakeWeatherSession struct {
	coords  *types.Coordinates
	snap    *types.WeatherSnapshot
	err     error
	gotLat  float64
	gotLon  float64
	fetches int
}

func (f *fakeWeatherSession) FetchWeather(_ context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	f.fetches++
	f.gotLat, f.gotLon = lat, lon
	return f.snap, f.err
}

func (f *fakeWeatherSession) StoredCoordinates() *types.Coordinates { return f.coords }

func testSnapshot() *types.WeatherSnapshot {
	return &types.WeatherSnapshot{
		Coord:       types.Coordinates{Lat: 20, Lon: 10},
		Conditions:  []types.Condition{{Summary: "Clear", Description: "clear sky", IconID: "01d"}},
		Temperature: 290.1,
		Humidity:    50,
		Pressure:    1010,
		WindSpeed:   3.5,
		CountryCode: "US",
		PlaceName:   "Testville",
	}
}

func newWeatherRouter(sess SessionWeather) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1/weather", NewWeatherHandler(sess, testLogger()).RegisterRoutes)
	return r
}

type weatherPayload struct {
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	PlaceName   string  `json:"place_name"`
	CountryCode string  `json:"country_code"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
	IconURL     string  `json:"icon_url"`
}

func TestWeatherGet_ExplicitCoordinates(t *testing.T) {
	sess := &fakeWeatherSession{snap: testSnapshot(), coords: &types.Coordinates{Lat: 1, Lon: 1}}
	rec := do(t, newWeatherRouter(sess), http.MethodGet, "/v1/weather/?lat=20&lon=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20.0, sess.gotLat)
	assert.Equal(t, 10.0, sess.gotLon)

	got := decodeData[weatherPayload](t, rec)
	assert.Equal(t, 290.1, got.Temperature)
	assert.Equal(t, 50, got.Humidity)
	assert.Equal(t, "Testville", got.PlaceName)
	assert.Equal(t, "US", got.CountryCode)
	assert.Equal(t, "01d", got.Icon)
	assert.Equal(t, "clear sky", got.Description)
	assert.Equal(t, "https://openweathermap.org/img/wn/01d@4x.png", got.IconURL)
}

func TestWeatherGet_SessionCoordinates(t *testing.T) {
	sess := &fakeWeatherSession{snap: testSnapshot(), coords: &types.Coordinates{Lat: -33.9, Lon: 151.2}}
	rec := do(t, newWeatherRouter(sess), http.MethodGet, "/v1/weather/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -33.9, sess.gotLat)
	assert.Equal(t, 151.2, sess.gotLon)
}

func TestWeatherGet_FallbackIcon(t *testing.T) {
	snap := testSnapshot()
	snap.Conditions = nil
	sess := &fakeWeatherSession{snap: snap}
	rec := do(t, newWeatherRouter(sess), http.MethodGet, "/v1/weather/?lat=1&lon=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[weatherPayload](t, rec)
	assert.Equal(t, types.FallbackIconID, got.Icon)
	assert.Equal(t, types.FallbackDescription, got.Description)
	assert.Equal(t, "https://openweathermap.org/img/wn/50d@4x.png", got.IconURL)
}

func TestWeatherGet_RequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		code   types.ErrorCode
	}{
		{name: "no session location", query: "", status: http.StatusNotFound, code: types.ErrCodeNotFoundLocation},
		{name: "lat only", query: "?lat=1", status: http.StatusBadRequest, code: types.ErrCodeValidationMissingField},
		{name: "lon only", query: "?lon=1", status: http.StatusBadRequest, code: types.ErrCodeValidationMissingField},
		{name: "bad lat", query: "?lat=north&lon=1", status: http.StatusBadRequest, code: types.ErrCodeValidationInvalidLat},
		{name: "bad lon", query: "?lat=1&lon=east", status: http.StatusBadRequest, code: types.ErrCodeValidationInvalidLon},
		{name: "lat range", query: "?lat=100&lon=1", status: http.StatusBadRequest, code: types.ErrCodeValidationInvalidLat},
		{name: "nan", query: "?lat=NaN&lon=1", status: http.StatusBadRequest, code: types.ErrCodeValidationInvalidLat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeWeatherSession{snap: testSnapshot()}
			rec := do(t, newWeatherRouter(sess), http.MethodGet, "/v1/weather/"+tt.query, "")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), errorCode(t, rec))
			assert.Zero(t, sess.fetches)
		})
	}
}

func TestWeatherGet_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "http status", err: types.NewHTTPStatusError(http.StatusInternalServerError, "")},
		{name: "network", err: types.NewAppError(types.ErrCodeUpstreamNetwork, "weather service unreachable", nil)},
		{name: "decode", err: types.NewAppError(types.ErrCodeUpstreamDecode, "malformed weather response", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeWeatherSession{err: tt.err}
			rec := do(t, newWeatherRouter(sess), http.MethodGet, "/v1/weather/?lat=1&lon=2", "")

			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, string(types.CodeOf(tt.err)), errorCode(t, rec))
		})
	}
}
