package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skycast/internal/types"
)

type fakeWeather struct {
	calls   atomic.Int32
	gate    chan struct{}
	entered chan struct{}
	err     error
	lastLat float64
	lastLon float64
	lastSID string
	mu      sync.Mutex
}

func (f *fakeWeather) FetchWeather(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastLat, f.lastLon = lat, lon
	f.lastSID = types.GetSessionID(ctx)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.WeatherSnapshot{Coord: types.Coordinates{Lat: lat, Lon: lon}, PlaceName: "Testville"}, nil
}

type fakeMetrics struct {
	mu      sync.Mutex
	results []string
}

func (m *fakeMetrics) RecordWeatherFetch(_ context.Context, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func TestHolder_SessionID(t *testing.T) {
	a := NewHolder(&fakeWeather{})
	b := NewHolder(&fakeWeather{})

	assert.True(t, strings.HasPrefix(a.ID(), "ses_"))
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestHolder_Coordinates(t *testing.T) {
	h := NewHolder(&fakeWeather{})
	assert.Nil(t, h.StoredCoordinates())

	h.SetCoordinates(types.Coordinates{Lat: 20, Lon: 10})
	got := h.StoredCoordinates()
	require.NotNil(t, got)
	assert.Equal(t, types.Coordinates{Lat: 20, Lon: 10}, *got)

	// Returned value is a copy.
	got.Lat = 0
	assert.Equal(t, 20.0, h.StoredCoordinates().Lat)

	h.Reset()
	assert.Nil(t, h.StoredCoordinates())
}

func TestHolder_FetchWeatherDelegates(t *testing.T) {
	weather := &fakeWeather{}
	metrics := &fakeMetrics{}
	h := NewHolder(weather, WithMetrics(metrics))

	snap, err := h.FetchWeather(context.Background(), 20, 10)
	require.NoError(t, err)

	assert.Equal(t, "Testville", snap.PlaceName)
	assert.Equal(t, 20.0, weather.lastLat)
	assert.Equal(t, 10.0, weather.lastLon)
	assert.Equal(t, h.ID(), weather.lastSID)
	assert.Equal(t, []string{types.ResultSuccess}, metrics.results)
}

func TestHolder_FetchWeatherPropagatesError(t *testing.T) {
	upstream := types.NewHTTPStatusError(500, "")
	metrics := &fakeMetrics{}
	h := NewHolder(&fakeWeather{err: upstream}, WithMetrics(metrics))

	_, err := h.FetchWeather(context.Background(), 1, 2)

	assert.Same(t, upstream, err, "error must pass through unchanged")
	assert.Equal(t, []string{types.ResultFailure}, metrics.results)
}

func TestHolder_FetchWeatherNeverCaches(t *testing.T) {
	weather := &fakeWeather{}
	h := NewHolder(weather)

	for i := 0; i < 3; i++ {
		_, err := h.FetchWeather(context.Background(), 1, 2)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), weather.calls.Load())
}

func TestHolder_RefreshWithoutLocation(t *testing.T) {
	weather := &fakeWeather{}
	h := NewHolder(weather)

	_, err := h.Refresh(context.Background())

	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundLocation))
	assert.Zero(t, weather.calls.Load())
}

func TestHolder_RefreshUsesSessionCoordinates(t *testing.T) {
	weather := &fakeWeather{}
	h := NewHolder(weather)
	h.SetCoordinates(types.Coordinates{Lat: -33.8688, Lon: 151.2093})

	snap, err := h.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.Coordinates{Lat: -33.8688, Lon: 151.2093}, snap.Coord)
	assert.False(t, h.Refreshing())
}

func TestHolder_ConcurrentRefreshesShareOneRequest(t *testing.T) {
	weather := &fakeWeather{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	h := NewHolder(weather)
	h.SetCoordinates(types.Coordinates{Lat: 1, Lon: 2})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*types.WeatherSnapshot, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = h.Refresh(context.Background())
	}()
	<-weather.entered
	assert.True(t, h.Refreshing())

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = h.Refresh(context.Background())
		}(i)
	}

	// Let the late callers join the in-flight call before releasing it.
	require.Eventually(t, func() bool { return h.refreshing.Load() == callers }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(weather.gate)
	wg.Wait()

	assert.Equal(t, int32(1), weather.calls.Load())
	for i, r := range results {
		require.NotNil(t, r, "caller %d", i)
		assert.Same(t, results[0], r)
	}
	assert.False(t, h.Refreshing())
}

func TestHolder_CancelledCallerDoesNotFailCoalescedRefresh(t *testing.T) {
	weather := &fakeWeather{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	h := NewHolder(weather)
	h.SetCoordinates(types.Coordinates{Lat: 1, Lon: 2})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.Refresh(firstCtx)
		firstErr <- err
	}()
	<-weather.entered

	secondDone := make(chan *types.WeatherSnapshot, 1)
	go func() {
		snap, _ := h.Refresh(context.Background())
		secondDone <- snap
	}()
	require.Eventually(t, func() bool { return h.refreshing.Load() == 2 }, time.Second, time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared fetch")
	}

	close(weather.gate)
	select {
	case snap := <-secondDone:
		require.NotNil(t, snap)
		assert.Equal(t, "Testville", snap.PlaceName)
	case <-time.After(time.Second):
		t.Fatal("second caller never received the shared result")
	}
	assert.Equal(t, int32(1), weather.calls.Load())
}

func TestHolder_SharedFetchKeepsCallerDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	fetchCtx, fetchCancel := detachedFetchContext(ctx)
	defer fetchCancel()

	got, ok := fetchCtx.Deadline()
	require.True(t, ok)
	assert.True(t, got.Equal(deadline))

	cancel()
	assert.NoError(t, fetchCtx.Err())
}
