// Package meteo wraps the Open-Meteo forecast API with a circuit breaker,
// bounded retries, and a 1-hour response freshness cache.
package meteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/avezina/weathervault/internal/weathercode"
)

const defaultBaseURL = "https://api.open-meteo.com/v1/forecast"

const httpTimeout = 10 * time.Second

// ErrUnavailable marks a fetch failure caused by the upstream API being
// unreachable, rate-limiting, or failing after retries.
var ErrUnavailable = errors.New("weather service unavailable")

// DefaultCurrentVariables is the variable set fetched for current conditions.
var DefaultCurrentVariables = []string{
	"apparent_temperature",
	"relative_humidity_2m",
	"temperature_2m",
	"is_day",
	"cloud_cover",
	"weather_code",
	"pressure_msl",
	"wind_speed_10m",
}

// defaultDailyVariables is the variable set fetched for daily forecasts.
var defaultDailyVariables = []string{
	"weather_code",
	"apparent_temperature_max",
	"sunshine_duration",
	"temperature_2m_max",
	"cloud_cover_mean",
	"relative_humidity_2m_mean",
	"pressure_msl_mean",
	"visibility_mean",
	"wind_speed_10m_mean",
	"temperature_2m_min",
}

// ResponseCache is the freshness cache consulted before any network call.
type ResponseCache interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, payload json.RawMessage) error
	Delete(ctx context.Context, key string) error
}

// Client fetches forecasts from Open-Meteo.
type Client struct {
	baseURL    string
	client     *http.Client
	cache      ResponseCache
	circuit    *gobreaker.CircuitBreaker
	maxRetries int
	retryDelay time.Duration
}

// NewClient constructs a Client using the production API URL. cache may be
// nil, in which case every call goes to the network.
func NewClient(cache ResponseCache) *Client {
	return newClient(defaultBaseURL, cache)
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for tests).
func NewClientWithURL(baseURL string, cache ResponseCache) *Client {
	return newClient(baseURL, cache)
}

func newClient(baseURL string, cache ResponseCache) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})
	return &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: httpTimeout},
		cache:      cache,
		circuit:    cb,
		maxRetries: 3,
		retryDelay: 300 * time.Millisecond,
	}
}

// DailyForecast is a daily time series for one coordinate pair.
type DailyForecast struct {
	Time             []string             `json:"daily_time"`
	UTCOffsetSeconds int                  `json:"utc_offset_seconds"`
	Latitude         float64              `json:"latitude"`
	Longitude        float64              `json:"longitude"`
	Elevation        float64              `json:"elevation"`
	Conditions       []string             `json:"daily_conditions"`
	Series           map[string][]float64 `json:"series"`
}

// HourlyForecast is the hourly temperature series for one coordinate pair.
type HourlyForecast struct {
	Time        []string  `json:"time"`
	Temperature []float64 `json:"temperature_2m"`
}

// FetchCurrent returns the current value of each requested variable, plus a
// derived "weather_condition" phrase when weather_code is among them.
// A nil or empty variables slice fetches DefaultCurrentVariables.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64, variables []string) (map[string]any, error) {
	if len(variables) == 0 {
		variables = DefaultCurrentVariables
	}

	params := currentParams(lat, lon, variables)

	var payload struct {
		Current map[string]any `json:"current"`
	}
	if err := c.get(ctx, "current", params, &payload); err != nil {
		return nil, err
	}
	if payload.Current == nil {
		return nil, fmt.Errorf("open-meteo response has no current block")
	}

	result := make(map[string]any, len(variables)+2)
	if t, ok := payload.Current["time"]; ok {
		result["time"] = t
	}
	for _, name := range variables {
		result[name] = payload.Current[name]
	}
	if code, ok := payload.Current["weather_code"].(float64); ok {
		result["weather_condition"] = weathercode.Describe(int(code))
	}
	return result, nil
}

// FetchDaily returns the daily forecast between start and end, inclusive.
// Zero times default to today through seven days out.
func (c *Client) FetchDaily(ctx context.Context, lat, lon float64, start, end time.Time) (*DailyForecast, error) {
	if start.IsZero() {
		start = time.Now()
	}
	if end.IsZero() {
		end = start.AddDate(0, 0, 7)
	}

	params := dailyParams(lat, lon, start, end)

	var raw struct {
		UTCOffsetSeconds int                        `json:"utc_offset_seconds"`
		Latitude         float64                    `json:"latitude"`
		Longitude        float64                    `json:"longitude"`
		Elevation        float64                    `json:"elevation"`
		Daily            map[string]json.RawMessage `json:"daily"`
	}
	if err := c.get(ctx, "daily", params, &raw); err != nil {
		return nil, err
	}
	if raw.Daily == nil {
		return nil, fmt.Errorf("open-meteo response has no daily block")
	}

	forecast := &DailyForecast{
		UTCOffsetSeconds: raw.UTCOffsetSeconds,
		Latitude:         raw.Latitude,
		Longitude:        raw.Longitude,
		Elevation:        raw.Elevation,
		Series:           make(map[string][]float64, len(defaultDailyVariables)),
	}

	if times, ok := raw.Daily["time"]; ok {
		if err := json.Unmarshal(times, &forecast.Time); err != nil {
			return nil, fmt.Errorf("decoding daily time axis: %w", err)
		}
	}
	for _, name := range defaultDailyVariables {
		values, ok := raw.Daily[name]
		if !ok {
			continue
		}
		var series []float64
		if err := json.Unmarshal(values, &series); err != nil {
			return nil, fmt.Errorf("decoding daily series %s: %w", name, err)
		}
		forecast.Series[name] = series
	}

	codes := forecast.Series["weather_code"]
	forecast.Conditions = make([]string, len(codes))
	for i, code := range codes {
		forecast.Conditions[i] = weathercode.Describe(int(code))
	}

	return forecast, nil
}

// FetchHourly returns the hourly temperature series.
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64) (*HourlyForecast, error) {
	params := hourlyParams(lat, lon)

	var payload struct {
		Hourly struct {
			Time          []string  `json:"time"`
			Temperature2m []float64 `json:"temperature_2m"`
		} `json:"hourly"`
	}
	if err := c.get(ctx, "hourly", params, &payload); err != nil {
		return nil, err
	}

	return &HourlyForecast{
		Time:        payload.Hourly.Time,
		Temperature: payload.Hourly.Temperature2m,
	}, nil
}

// Invalidate drops the cached responses for a coordinate pair so the next
// fetch of each view goes to the network. The daily key covers the default
// window; explicit date-range fetches age out on their own TTL.
func (c *Client) Invalidate(ctx context.Context, lat, lon float64) error {
	if c.cache == nil {
		return nil
	}

	now := time.Now()
	keys := []string{
		cacheKey("current", currentParams(lat, lon, DefaultCurrentVariables)),
		cacheKey("daily", dailyParams(lat, lon, now, now.AddDate(0, 0, 7))),
		cacheKey("hourly", hourlyParams(lat, lon)),
	}
	for _, key := range keys {
		if err := c.cache.Delete(ctx, key); err != nil {
			return fmt.Errorf("invalidating %s: %w", key, err)
		}
	}
	return nil
}

func coordParams(lat, lon float64) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("timezone", "auto")
	return params
}

func currentParams(lat, lon float64, variables []string) url.Values {
	params := coordParams(lat, lon)
	params.Set("current", strings.Join(variables, ","))
	return params
}

func dailyParams(lat, lon float64, start, end time.Time) url.Values {
	params := coordParams(lat, lon)
	params.Set("daily", strings.Join(defaultDailyVariables, ","))
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	return params
}

func hourlyParams(lat, lon float64) url.Values {
	params := coordParams(lat, lon)
	params.Set("hourly", "temperature_2m")
	return params
}

func cacheKey(kind string, params url.Values) string {
	return "meteo:" + kind + ":" + params.Encode()
}

// get resolves the request through the freshness cache, falling back to the
// network with circuit-breaking and retries. Fresh responses are cached for
// the cache's TTL.
func (c *Client) get(ctx context.Context, kind string, params url.Values, dst any) error {
	key := cacheKey(kind, params)

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, key)
		if err == nil && cached != nil {
			if err := json.Unmarshal(cached, dst); err == nil {
				return nil
			}
			// Undecodable cache entries fall through to a fresh fetch.
		}
	}

	body, err := c.do(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding open-meteo response: %w", err)
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, key, json.RawMessage(body))
	}
	return nil
}

// do executes the GET through the circuit breaker with bounded retries.
// Rate limiting and 5xx statuses are retried; other non-2xx statuses fail
// immediately.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (any, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if reqErr != nil {
				return nil, reqErr
			}
			resp, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, fmt.Errorf("status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(resp.Body)
				return nil, permanentError{fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
			}

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, permanentError{readErr}
			}
			return body, nil
		})
		if err == nil {
			return result.([]byte), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err)
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, perm.err)
		}

		lastErr = err
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
		}

		delay := c.retryDelay << attempt
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }
