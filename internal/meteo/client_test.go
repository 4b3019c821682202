package meteo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avezina/weathervault/internal/meteo"
)

// fakeCache is an in-memory ResponseCache.
type fakeCache struct {
	entries map[string]json.RawMessage
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]json.RawMessage{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (json.RawMessage, error) {
	return f.entries[key], nil
}

func (f *fakeCache) Set(_ context.Context, key string, payload json.RawMessage) error {
	f.sets++
	f.entries[key] = payload
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

const currentJSON = `{
	"current": {
		"time": "2023-10-01T12:00",
		"temperature_2m": 21.4,
		"relative_humidity_2m": 60,
		"apparent_temperature": 20.1,
		"is_day": 1,
		"cloud_cover": 40,
		"weather_code": 61,
		"pressure_msl": 1013.2,
		"wind_speed_10m": 15.0
	}
}`

func TestFetchCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "52.52", r.URL.Query().Get("latitude"))
		assert.Equal(t, "13.41", r.URL.Query().Get("longitude"))
		assert.Contains(t, r.URL.Query().Get("current"), "weather_code")
		_, _ = w.Write([]byte(currentJSON))
	}))
	defer srv.Close()

	client := meteo.NewClientWithURL(srv.URL, nil)
	got, err := client.FetchCurrent(context.Background(), 52.52, 13.41, nil)
	require.NoError(t, err)

	assert.Equal(t, 21.4, got["temperature_2m"])
	assert.Equal(t, 15.0, got["wind_speed_10m"])
	assert.Equal(t, "Rain: Slight intensity", got["weather_condition"], "weather_code is translated")
}

func TestFetchCurrent_UsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(currentJSON))
	}))
	defer srv.Close()

	cache := newFakeCache()
	client := meteo.NewClientWithURL(srv.URL, cache)

	ctx := context.Background()
	_, err := client.FetchCurrent(ctx, 52.52, 13.41, nil)
	require.NoError(t, err)
	_, err = client.FetchCurrent(ctx, 52.52, 13.41, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second fetch must come from cache")
	assert.Equal(t, 1, cache.sets)
}

func TestInvalidate_ForcesNetworkFetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(currentJSON))
	}))
	defer srv.Close()

	cache := newFakeCache()
	client := meteo.NewClientWithURL(srv.URL, cache)

	ctx := context.Background()
	_, err := client.FetchCurrent(ctx, 52.52, 13.41, nil)
	require.NoError(t, err)

	require.NoError(t, client.Invalidate(ctx, 52.52, 13.41))
	assert.Empty(t, cache.entries, "all cached views dropped")

	_, err = client.FetchCurrent(ctx, 52.52, 13.41, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "post-invalidation fetch must hit the network")
}

func TestFetchCurrent_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(currentJSON))
	}))
	defer srv.Close()

	client := meteo.NewClientWithURL(srv.URL, nil)
	got, err := client.FetchCurrent(context.Background(), 52.52, 13.41, nil)
	require.NoError(t, err)
	assert.Equal(t, 21.4, got["temperature_2m"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchCurrent_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := meteo.NewClientWithURL(srv.URL, nil)
	_, err := client.FetchCurrent(context.Background(), 52.52, 13.41, nil)
	require.ErrorIs(t, err, meteo.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2023-10-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2023-10-03", r.URL.Query().Get("end_date"))
		_, _ = w.Write([]byte(`{
			"utc_offset_seconds": 7200,
			"latitude": 52.52,
			"longitude": 13.41,
			"elevation": 38.0,
			"daily": {
				"time": ["2023-10-01", "2023-10-02", "2023-10-03"],
				"weather_code": [0, 3, 61],
				"temperature_2m_max": [21.0, 18.5, 14.2],
				"temperature_2m_min": [12.1, 11.0, 9.8]
			}
		}`))
	}))
	defer srv.Close()

	client := meteo.NewClientWithURL(srv.URL, nil)
	start := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 10, 3, 0, 0, 0, 0, time.UTC)

	forecast, err := client.FetchDaily(context.Background(), 52.52, 13.41, start, end)
	require.NoError(t, err)

	assert.Equal(t, 7200, forecast.UTCOffsetSeconds)
	assert.Equal(t, 38.0, forecast.Elevation)
	assert.Equal(t, []string{"2023-10-01", "2023-10-02", "2023-10-03"}, forecast.Time)
	assert.Equal(t, []float64{21.0, 18.5, 14.2}, forecast.Series["temperature_2m_max"])
	assert.Equal(t, []string{"Clear sky", "Overcast", "Rain: Slight intensity"}, forecast.Conditions)
}

func TestFetchHourly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "temperature_2m", r.URL.Query().Get("hourly"))
		_, _ = w.Write([]byte(`{
			"hourly": {
				"time": ["2023-10-01T00:00", "2023-10-01T01:00"],
				"temperature_2m": [12.3, 11.8]
			}
		}`))
	}))
	defer srv.Close()

	client := meteo.NewClientWithURL(srv.URL, nil)
	forecast, err := client.FetchHourly(context.Background(), 52.52, 13.41)
	require.NoError(t, err)
	assert.Equal(t, []float64{12.3, 11.8}, forecast.Temperature)
	assert.Len(t, forecast.Time, 2)
}
