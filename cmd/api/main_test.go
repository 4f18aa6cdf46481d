package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skycast/internal/config"
	"skycast/internal/core"
)

const testWeatherBody = `{"coord":{"lon":10,"lat":20},"weather":[{"main":"Clear","description":"clear sky","icon":"01d"}],"main":{"temp":290.1,"humidity":50,"pressure":1010},"wind":{"speed":3.5},"sys":{"country":"US"},"name":"Testville"}`

// setTestEnv points every upstream at local test servers and the store at a
// temporary SQLite file.
func setTestEnv(t *testing.T, weatherURL, geoURL string) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("OPENWEATHER_API_KEY", "test-key")
	t.Setenv("OPENWEATHER_ENDPOINT", weatherURL)
	t.Setenv("IP_GEO_ENDPOINT", geoURL)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "skycast.db"))
	t.Setenv("LOCATION_PERMISSION", "granted")
	t.Setenv("SKYCAST_LAST_KNOWN_LAT", "20")
	t.Setenv("SKYCAST_LAST_KNOWN_LON", "10")
	t.Setenv("METRICS_ENABLED", "false")
}

func buildTestServer(t *testing.T) (*core.Server, *atomic.Int32) {
	t.Helper()

	geo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","lat":1,"lon":2}`))
	})
	return buildTestServerWithGeo(t, geo, true)
}

// buildTestServerWithGeo serves geolocation lookups from geoHandler. Without
// lastKnown the acquirer has no last-known fix and always asks for a fresh one.
func buildTestServerWithGeo(t *testing.T, geoHandler http.Handler, lastKnown bool) (*core.Server, *atomic.Int32) {
	t.Helper()

	weatherCalls := &atomic.Int32{}
	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weatherCalls.Add(1)
		if r.URL.Query().Get("appid") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(testWeatherBody))
	}))
	t.Cleanup(weather.Close)

	geo := httptest.NewServer(geoHandler)
	t.Cleanup(geo.Close)

	setTestEnv(t, weather.URL, geo.URL)
	if !lastKnown {
		os.Unsetenv("SKYCAST_LAST_KNOWN_LAT")
		os.Unsetenv("SKYCAST_LAST_KNOWN_LON")
	}

	cfg, err := config.LoadConfig(nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := buildServer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return srv, weatherCalls
}

func request(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := buildTestServer(t)

	rec := request(t, srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Status     string                    `json:"status"`
		Components map[string]map[string]any `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Components["location_store"]["status"])
}

func TestEndToEnd_AcquireDashboardForget(t *testing.T) {
	srv, weatherCalls := buildTestServer(t)
	h := srv.Handler()

	// Nothing saved yet.
	rec := request(t, h, http.MethodGet, "/v1/dashboard", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, weatherCalls.Load())

	// The configured last-known fix wins over IP geolocation.
	rec = request(t, h, http.MethodPost, "/v1/location/acquire", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"source":"last_known"`)
	assert.Contains(t, rec.Body.String(), `"persisted":true`)

	rec = request(t, h, http.MethodGet, "/v1/location", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"is_set":true,"location":{"lat":20,"lon":10}}}`, rec.Body.String())

	rec = request(t, h, http.MethodGet, "/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Testville, US")
	assert.Equal(t, int32(1), weatherCalls.Load())

	// A second acquire reuses the saved location.
	rec = request(t, h, http.MethodPost, "/v1/location/acquire", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"stored"`)

	rec = request(t, h, http.MethodDelete, "/v1/location", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = request(t, h, http.MethodGet, "/v1/location", "")
	assert.JSONEq(t, `{"data":{"is_set":false,"location":null}}`, rec.Body.String())

	rec = request(t, h, http.MethodGet, "/v1/weather", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEndToEnd_ManualLocationAndWeather(t *testing.T) {
	srv, _ := buildTestServer(t)
	h := srv.Handler()

	rec := request(t, h, http.MethodPut, "/v1/location", `{"lat":-33.8688,"lon":151.2093}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = request(t, h, http.MethodGet, "/v1/weather", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data struct {
			Temperature float64 `json:"temperature"`
			Humidity    int     `json:"humidity"`
			PlaceName   string  `json:"place_name"`
			CountryCode string  `json:"country_code"`
			IconURL     string  `json:"icon_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 290.1, body.Data.Temperature)
	assert.Equal(t, 50, body.Data.Humidity)
	assert.Equal(t, "Testville", body.Data.PlaceName)
	assert.Equal(t, "US", body.Data.CountryCode)
	assert.Equal(t, "https://openweathermap.org/img/wn/01d@4x.png", body.Data.IconURL)
}

func TestDrain_CancelsPendingFreshFix(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	geo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})

	srv, _ := buildTestServerWithGeo(t, geo, false)
	t.Cleanup(func() { close(release) })

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- request(t, srv.Handler(), http.MethodPost, "/v1/location/acquire", "")
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("fresh fix never reached the geolocation endpoint")
	}

	srv.Drain()

	select {
	case rec := <-done:
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, "location_unavailable", env.Error.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("acquire request still pending after drain")
	}

	rec := request(t, srv.Handler(), http.MethodGet, "/v1/location", "")
	assert.Contains(t, rec.Body.String(), `"is_set":false`)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(tt.level)
			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tt.want))
			assert.False(t, logger.Enabled(ctx, tt.want-1))
		})
	}
}
