// Package geocode wraps the Open-Meteo geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultBaseURL = "https://geocoding-api.open-meteo.com/v1/search"

const httpTimeout = 10 * time.Second

// ErrUnavailable marks a geocoding failure caused by the upstream API being
// unreachable or returning a non-success status after retries. It is never
// returned for an empty result set.
var ErrUnavailable = errors.New("geocoding service unavailable")

// Result is a single geocoding match, best-ranked first in search output.
type Result struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Country   string  `json:"country"`
}

// Client fetches geocoding results from Open-Meteo.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client using the production API URL.
func NewClient() *Client {
	return &Client{baseURL: defaultBaseURL, client: &http.Client{Timeout: httpTimeout}}
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for tests).
func NewClientWithURL(baseURL string) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: httpTimeout}}
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search returns up to count matches for name, ordered best-match-first.
// An empty slice means the name resolved to nothing; network failures and
// non-2xx statuses are retried with exponential backoff and then surfaced
// wrapping ErrUnavailable.
func (c *Client) Search(ctx context.Context, name string, count int, language string) ([]Result, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", strconv.Itoa(count))
	q.Set("language", language)
	q.Set("format", "json")
	endpoint := c.baseURL + "?" + q.Encode()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("GET %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("GET %s returned status %d", endpoint, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("GET %s returned status %d", endpoint, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("reading body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: geocoding %q: %v", ErrUnavailable, name, err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding geocoding response for %q: %w", name, err)
	}

	return parsed.Results, nil
}
