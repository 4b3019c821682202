package meteo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// currentFetcher, dailyFetcher, and hourlyFetcher are the interfaces
// satisfied by Client, split so tests can inject each independently.
type currentFetcher interface {
	FetchCurrent(ctx context.Context, lat, lon float64, variables []string) (map[string]any, error)
}

type dailyFetcher interface {
	FetchDaily(ctx context.Context, lat, lon float64, start, end time.Time) (*DailyForecast, error)
}

type hourlyFetcher interface {
	FetchHourly(ctx context.Context, lat, lon float64) (*HourlyForecast, error)
}

// Bundle is the combined forecast view for one coordinate pair. Sections
// whose fetch failed are nil.
type Bundle struct {
	Current map[string]any  `json:"current,omitempty"`
	Daily   *DailyForecast  `json:"daily,omitempty"`
	Hourly  *HourlyForecast `json:"hourly,omitempty"`
}

// Forecaster fetches the current, daily, and hourly views in parallel.
type Forecaster struct {
	current currentFetcher
	daily   dailyFetcher
	hourly  hourlyFetcher
	log     *slog.Logger
}

// NewForecaster constructs a Forecaster backed by the given client.
func NewForecaster(client *Client, log *slog.Logger) *Forecaster {
	return &Forecaster{current: client, daily: client, hourly: client, log: log}
}

// NewForecasterWithFetchers constructs a Forecaster with injectable fetchers (used in tests).
func NewForecasterWithFetchers(c currentFetcher, d dailyFetcher, h hourlyFetcher, log *slog.Logger) *Forecaster {
	return &Forecaster{current: c, daily: d, hourly: h, log: log}
}

// FetchAll fetches all three forecast views in parallel. Individual fetch
// failures are non-fatal: the bundle carries whatever succeeded, with
// failures logged. An error is returned only when nothing could be fetched.
func (f *Forecaster) FetchAll(ctx context.Context, lat, lon float64) (*Bundle, error) {
	g, gCtx := errgroup.WithContext(ctx)

	var bundle Bundle

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("current fetch panicked", "recover", r)
				err = fmt.Errorf("current fetch panicked: %v", r)
			}
		}()
		current, fetchErr := f.current.FetchCurrent(gCtx, lat, lon, nil)
		if fetchErr != nil {
			f.log.Warn("current fetch failed", "lat", lat, "lon", lon, "err", fetchErr)
			return nil
		}
		bundle.Current = current
		return nil
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("daily fetch panicked", "recover", r)
				err = fmt.Errorf("daily fetch panicked: %v", r)
			}
		}()
		daily, fetchErr := f.daily.FetchDaily(gCtx, lat, lon, time.Time{}, time.Time{})
		if fetchErr != nil {
			f.log.Warn("daily fetch failed", "lat", lat, "lon", lon, "err", fetchErr)
			return nil
		}
		bundle.Daily = daily
		return nil
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("hourly fetch panicked", "recover", r)
				err = fmt.Errorf("hourly fetch panicked: %v", r)
			}
		}()
		hourly, fetchErr := f.hourly.FetchHourly(gCtx, lat, lon)
		if fetchErr != nil {
			f.log.Warn("hourly fetch failed", "lat", lat, "lon", lon, "err", fetchErr)
			return nil
		}
		bundle.Hourly = hourly
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching forecasts for %v,%v: %w", lat, lon, err)
	}

	if bundle.Current == nil && bundle.Daily == nil && bundle.Hourly == nil {
		return nil, fmt.Errorf("%w: all forecast fetches failed", ErrUnavailable)
	}

	return &bundle, nil
}
