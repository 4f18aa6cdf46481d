package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skycast/internal/core"
	"skycast/internal/types"
)

// --- Fakes ---

type fakeStore struct {
	mu       sync.Mutex
	coords   *types.Coordinates
	setErr   error
	getErr   error
	clearErr error
}

func (f *fakeStore) IsLocationSet(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coords != nil, f.getErr
}

func (f *fakeStore) GetLocation(context.Context) (*types.Coordinates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.coords == nil {
		return nil, nil
	}
	c := *f.coords
	return &c, nil
}

func (f *fakeStore) SetLocation(_ context.Context, c types.Coordinates) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.coords = &c
	return nil
}

func (f *fakeStore) ClearLocation(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.coords = nil
	return nil
}

type fakeAcquirer struct {
	fix          types.Fix
	err          error
	acquireCalls int
	resolveCalls int
}

func (f *fakeAcquirer) AcquireLocation(context.Context) (types.Fix, error) {
	f.acquireCalls++
	return f.fix, f.err
}

func (f *fakeAcquirer) ResolveLocation(context.Context) (types.Fix, error) {
	f.resolveCalls++
	return f.fix, f.err
}

type fakeSession struct {
	coords *types.Coordinates
	resets int
}

func (f *fakeSession) SetCoordinates(c types.Coordinates) { f.coords = &c }
func (f *fakeSession) Reset()                             { f.coords = nil; f.resets++ }

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocationRouter(store types.LocationStore, acq LocationAcquirer, sess SessionCoordinates) http.Handler {
	h := NewLocationHandler(store, acq, sess, core.NewValidator(testLogger()), testLogger())
	r := chi.NewRouter()
	r.Route("/v1/location", h.RegisterRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error.Code
}

// --- GET ---

func TestLocationGet_Unset(t *testing.T) {
	rec := do(t, newLocationRouter(&fakeStore{}, &fakeAcquirer{}, &fakeSession{}), http.MethodGet, "/v1/location/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[LocationResponse](t, rec)
	assert.False(t, got.IsSet)
	assert.Nil(t, got.Location)
}

func TestLocationGet_Set(t *testing.T) {
	store := &fakeStore{coords: &types.Coordinates{Lat: 51.5072, Lon: -0.1276}}
	rec := do(t, newLocationRouter(store, &fakeAcquirer{}, &fakeSession{}), http.MethodGet, "/v1/location/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[LocationResponse](t, rec)
	assert.True(t, got.IsSet)
	require.NotNil(t, got.Location)
	assert.Equal(t, 51.5072, got.Location.Lat)
	assert.Equal(t, -0.1276, got.Location.Lon)
}

func TestLocationGet_StorageError(t *testing.T) {
	store := &fakeStore{getErr: types.NewAppError(types.ErrCodeInternalStorage, "failed to read location", errors.New("disk"))}
	rec := do(t, newLocationRouter(store, &fakeAcquirer{}, &fakeSession{}), http.MethodGet, "/v1/location/", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(types.ErrCodeInternalStorage), errorCode(t, rec))
}

// --- PUT ---

func TestLocationSet_Success(t *testing.T) {
	store := &fakeStore{}
	sess := &fakeSession{}
	rec := do(t, newLocationRouter(store, &fakeAcquirer{}, sess), http.MethodPut, "/v1/location/", `{"lat":0,"lon":-0.5}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.coords)
	assert.Equal(t, types.Coordinates{Lat: 0, Lon: -0.5}, *store.coords)
	require.NotNil(t, sess.coords, "session must mirror the saved location")
	assert.Equal(t, *store.coords, *sess.coords)
}

func TestLocationSet_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code types.ErrorCode
	}{
		{name: "missing lon", body: `{"lat":10}`, code: types.ErrCodeValidationMissingField},
		{name: "lat out of range", body: `{"lat":91,"lon":0}`, code: types.ErrCodeValidationInvalidLat},
		{name: "lon out of range", body: `{"lat":0,"lon":181}`, code: types.ErrCodeValidationInvalidLon},
		{name: "malformed", body: `{"lat":`, code: types.ErrCodeValidationInvalidJSON},
		{name: "unknown field", body: `{"lat":1,"lon":1,"alt":3}`, code: types.ErrCodeValidationInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			sess := &fakeSession{}
			rec := do(t, newLocationRouter(store, &fakeAcquirer{}, sess), http.MethodPut, "/v1/location/", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tt.code), errorCode(t, rec))
			assert.Nil(t, store.coords)
			assert.Nil(t, sess.coords)
		})
	}
}

func TestLocationSet_StorageErrorLeavesSessionAlone(t *testing.T) {
	store := &fakeStore{setErr: types.NewAppError(types.ErrCodeInternalStorage, "failed to save location", nil)}
	sess := &fakeSession{}
	rec := do(t, newLocationRouter(store, &fakeAcquirer{}, sess), http.MethodPut, "/v1/location/", `{"lat":1,"lon":2}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, sess.coords)
}

// --- DELETE ---

func TestLocationClear(t *testing.T) {
	store := &fakeStore{coords: &types.Coordinates{Lat: 1, Lon: 2}}
	sess := &fakeSession{coords: &types.Coordinates{Lat: 1, Lon: 2}}
	router := newLocationRouter(store, &fakeAcquirer{}, sess)

	rec := do(t, router, http.MethodDelete, "/v1/location/", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, store.coords)
	assert.Equal(t, 1, sess.resets)

	// Clearing twice is harmless.
	rec = do(t, router, http.MethodDelete, "/v1/location/", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// --- POST /acquire ---

func TestLocationAcquire_ResolvesByDefault(t *testing.T) {
	acq := &fakeAcquirer{fix: types.Fix{
		Coordinates: types.Coordinates{Lat: 10, Lon: 20},
		Source:      types.FixSourceStored,
		At:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
	rec := do(t, newLocationRouter(&fakeStore{}, acq, &fakeSession{}), http.MethodPost, "/v1/location/acquire", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, acq.resolveCalls)
	assert.Equal(t, 0, acq.acquireCalls)

	got := decodeData[AcquireResponse](t, rec)
	assert.True(t, got.Persisted)
	assert.Equal(t, types.FixSourceStored, got.Fix.Source)
	assert.Equal(t, types.Coordinates{Lat: 10, Lon: 20}, got.Fix.Coordinates)
}

func TestLocationAcquire_Force(t *testing.T) {
	acq := &fakeAcquirer{fix: types.Fix{Coordinates: types.Coordinates{Lat: 1, Lon: 1}, Source: types.FixSourceFresh}}
	rec := do(t, newLocationRouter(&fakeStore{}, acq, &fakeSession{}), http.MethodPost, "/v1/location/acquire?force=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, acq.acquireCalls)
	assert.Equal(t, 0, acq.resolveCalls)
}

func TestLocationAcquire_InvalidForce(t *testing.T) {
	acq := &fakeAcquirer{}
	rec := do(t, newLocationRouter(&fakeStore{}, acq, &fakeSession{}), http.MethodPost, "/v1/location/acquire?force=maybe", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, acq.acquireCalls+acq.resolveCalls)
}

func TestLocationAcquire_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "permission denied",
			err:    types.NewAppError(types.ErrCodePermissionDenied, "location permission not granted", nil),
			status: http.StatusForbidden,
		},
		{
			name:   "unavailable",
			err:    types.NewAppError(types.ErrCodeLocationUnavailable, "failed to get location", nil),
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := &fakeAcquirer{err: tt.err}
			rec := do(t, newLocationRouter(&fakeStore{}, acq, &fakeSession{}), http.MethodPost, "/v1/location/acquire?force=true", "")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(types.CodeOf(tt.err)), errorCode(t, rec))
		})
	}
}

func TestLocationAcquire_SaveFailedStillReturnsFix(t *testing.T) {
	acq := &fakeAcquirer{
		fix: types.Fix{Coordinates: types.Coordinates{Lat: 3, Lon: 4}, Source: types.FixSourceLastKnown},
		err: types.NewAppError(types.ErrCodeInternalStorage, "failed to save location", errors.New("read-only")),
	}
	rec := do(t, newLocationRouter(&fakeStore{}, acq, &fakeSession{}), http.MethodPost, "/v1/location/acquire", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[AcquireResponse](t, rec)
	assert.False(t, got.Persisted)
	assert.Equal(t, types.Coordinates{Lat: 3, Lon: 4}, got.Fix.Coordinates)
}
