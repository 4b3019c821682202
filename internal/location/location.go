// Package location holds the resolved-place domain model and the resolver
// that backs name lookups with a persistent cache.
package location

import (
	"fmt"
	"strings"
	"time"
)

// Location is a geocoded place cached in the store. Instances are immutable
// once persisted; all writes go through the repository.
type Location struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Country   string    `json:"country"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationError reports a field that failed a range or shape check.
// Writes carrying one must be fixed by the caller, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the coordinate ranges and the name before a write.
// Out-of-range values are rejected, never clamped.
func (l Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if l.Lat < -90 || l.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: fmt.Sprintf("%v is outside [-90, 90]", l.Lat)}
	}
	if l.Lon < -180 || l.Lon > 180 {
		return &ValidationError{Field: "lon", Reason: fmt.Sprintf("%v is outside [-180, 180]", l.Lon)}
	}
	return nil
}
