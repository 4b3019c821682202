package meteo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCurrent struct {
	fn func(ctx context.Context, lat, lon float64, variables []string) (map[string]any, error)
}

func (m *mockCurrent) FetchCurrent(ctx context.Context, lat, lon float64, variables []string) (map[string]any, error) {
	return m.fn(ctx, lat, lon, variables)
}

type mockDaily struct {
	fn func(ctx context.Context, lat, lon float64, start, end time.Time) (*DailyForecast, error)
}

func (m *mockDaily) FetchDaily(ctx context.Context, lat, lon float64, start, end time.Time) (*DailyForecast, error) {
	return m.fn(ctx, lat, lon, start, end)
}

type mockHourly struct {
	fn func(ctx context.Context, lat, lon float64) (*HourlyForecast, error)
}

func (m *mockHourly) FetchHourly(ctx context.Context, lat, lon float64) (*HourlyForecast, error) {
	return m.fn(ctx, lat, lon)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchAll(t *testing.T) {
	current := &mockCurrent{fn: func(_ context.Context, lat, lon float64, _ []string) (map[string]any, error) {
		assert.Equal(t, 52.52, lat)
		assert.Equal(t, 13.41, lon)
		return map[string]any{"temperature_2m": 21.4}, nil
	}}
	daily := &mockDaily{fn: func(_ context.Context, _, _ float64, _, _ time.Time) (*DailyForecast, error) {
		return &DailyForecast{Time: []string{"2023-10-01"}}, nil
	}}
	hourly := &mockHourly{fn: func(_ context.Context, _, _ float64) (*HourlyForecast, error) {
		return &HourlyForecast{Temperature: []float64{12.3}}, nil
	}}

	f := NewForecasterWithFetchers(current, daily, hourly, discardLogger())
	bundle, err := f.FetchAll(context.Background(), 52.52, 13.41)
	require.NoError(t, err)

	assert.Equal(t, 21.4, bundle.Current["temperature_2m"])
	assert.Equal(t, []string{"2023-10-01"}, bundle.Daily.Time)
	assert.Equal(t, []float64{12.3}, bundle.Hourly.Temperature)
}

func TestFetchAll_PartialFailure(t *testing.T) {
	current := &mockCurrent{fn: func(_ context.Context, _, _ float64, _ []string) (map[string]any, error) {
		return nil, errors.New("boom")
	}}
	daily := &mockDaily{fn: func(_ context.Context, _, _ float64, _, _ time.Time) (*DailyForecast, error) {
		return &DailyForecast{Time: []string{"2023-10-01"}}, nil
	}}
	hourly := &mockHourly{fn: func(_ context.Context, _, _ float64) (*HourlyForecast, error) {
		return nil, errors.New("boom")
	}}

	f := NewForecasterWithFetchers(current, daily, hourly, discardLogger())
	bundle, err := f.FetchAll(context.Background(), 52.52, 13.41)
	require.NoError(t, err)

	assert.Nil(t, bundle.Current)
	assert.Nil(t, bundle.Hourly)
	require.NotNil(t, bundle.Daily)
}

func TestFetchAll_AllFailed(t *testing.T) {
	current := &mockCurrent{fn: func(_ context.Context, _, _ float64, _ []string) (map[string]any, error) {
		return nil, ErrUnavailable
	}}
	daily := &mockDaily{fn: func(_ context.Context, _, _ float64, _, _ time.Time) (*DailyForecast, error) {
		return nil, ErrUnavailable
	}}
	hourly := &mockHourly{fn: func(_ context.Context, _, _ float64) (*HourlyForecast, error) {
		return nil, ErrUnavailable
	}}

	f := NewForecasterWithFetchers(current, daily, hourly, discardLogger())
	bundle, err := f.FetchAll(context.Background(), 52.52, 13.41)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, bundle)
}

func TestFetchAll_RecoversPanic(t *testing.T) {
	current := &mockCurrent{fn: func(_ context.Context, _, _ float64, _ []string) (map[string]any, error) {
		panic("bad index")
	}}
	daily := &mockDaily{fn: func(_ context.Context, _, _ float64, _, _ time.Time) (*DailyForecast, error) {
		return &DailyForecast{}, nil
	}}
	hourly := &mockHourly{fn: func(_ context.Context, _, _ float64) (*HourlyForecast, error) {
		return &HourlyForecast{}, nil
	}}

	f := NewForecasterWithFetchers(current, daily, hourly, discardLogger())
	bundle, err := f.FetchAll(context.Background(), 52.52, 13.41)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Nil(t, bundle)
}
