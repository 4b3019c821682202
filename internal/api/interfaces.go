package api

import (
	"context"
	"time"

	"github.com/avezina/weathervault/internal/export"
	"github.com/avezina/weathervault/internal/location"
	"github.com/avezina/weathervault/internal/meteo"
	"github.com/avezina/weathervault/internal/weather"
)

// LocationResolver defines the name and id resolution needed by handlers.
type LocationResolver interface {
	Resolve(ctx context.Context, name string) (*location.Location, error)
	GetByID(ctx context.Context, id int) (*location.Location, error)
}

// WeatherStore defines the record storage operations needed by handlers.
type WeatherStore interface {
	CreateWeather(ctx context.Context, rec weather.Record) (*weather.Record, error)
	GetWeatherByID(ctx context.Context, id int) (*weather.Record, error)
	UpdateWeather(ctx context.Context, id int, patch weather.Patch) (*weather.Record, error)
	DeleteWeather(ctx context.Context, id int) (bool, error)
	QueryWeatherByUser(ctx context.Context, user string) ([]weather.Record, error)
	QueryWeatherByLocation(ctx context.Context, locationID, limit int) ([]weather.Record, error)
	QueryWeatherByDateRange(ctx context.Context, locationID int, start, end time.Time) ([]weather.Record, error)
}

// ForecastClient defines the per-view forecast fetches needed by handlers.
type ForecastClient interface {
	FetchCurrent(ctx context.Context, lat, lon float64, variables []string) (map[string]any, error)
	FetchDaily(ctx context.Context, lat, lon float64, start, end time.Time) (*meteo.DailyForecast, error)
	FetchHourly(ctx context.Context, lat, lon float64) (*meteo.HourlyForecast, error)
}

// ForecastBundler defines the combined parallel fetch needed by handlers.
type ForecastBundler interface {
	FetchAll(ctx context.Context, lat, lon float64) (*meteo.Bundle, error)
}

// CacheInvalidator defines the forced cache drop needed by the refresh handler.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, lat, lon float64) error
}

// Exporter defines the export rendering needed by handlers.
type Exporter interface {
	WeatherJSON(ctx context.Context, f export.Filter) (*export.File, error)
	WeatherXML(ctx context.Context, f export.Filter) (*export.File, error)
	WeatherCSV(ctx context.Context, f export.Filter) (*export.File, error)
	WeatherOnlyJSON(ctx context.Context, f export.Filter) (*export.File, error)
	LocationsJSON(ctx context.Context) (*export.File, error)
}
