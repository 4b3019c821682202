// Package weather holds the persisted weather observation model.
package weather

import (
	"fmt"
	"strings"
	"time"
)

// Record is one weather observation or forecast entry tied to a single
// location and calendar date.
type Record struct {
	ID            int
	LocationID    int
	Date          time.Time // date component only
	Temp          float64
	Condition     string
	WindSpeed     *float64
	Humidity      *int
	TriggeredUser *string
	APISource     *string
	CreatedAt     time.Time
}

// Patch carries a merge-patch update: nil fields leave the stored value
// untouched, non-nil fields overwrite it.
type Patch struct {
	Date          *time.Time
	Temp          *float64
	Condition     *string
	WindSpeed     *float64
	Humidity      *int
	TriggeredUser *string
	APISource     *string
}

// ValidationError reports a field that failed a range or shape check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks all range constraints before an insert. Out-of-range
// values fail the write; nothing is clamped.
func (r Record) Validate() error {
	if r.LocationID <= 0 {
		return &ValidationError{Field: "loc_id", Reason: "must reference a location"}
	}
	if r.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "must be set"}
	}
	if strings.TrimSpace(r.Condition) == "" {
		return &ValidationError{Field: "condition", Reason: "must not be empty"}
	}
	if err := checkRanges(&r.Temp, r.WindSpeed, r.Humidity); err != nil {
		return err
	}
	return nil
}

// Validate checks the ranges of every field the patch supplies.
func (p Patch) Validate() error {
	if p.Condition != nil && strings.TrimSpace(*p.Condition) == "" {
		return &ValidationError{Field: "condition", Reason: "must not be empty"}
	}
	return checkRanges(p.Temp, p.WindSpeed, p.Humidity)
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.Temp == nil && p.Condition == nil &&
		p.WindSpeed == nil && p.Humidity == nil &&
		p.TriggeredUser == nil && p.APISource == nil
}

func checkRanges(temp, windSpeed *float64, humidity *int) error {
	if temp != nil && (*temp < -100 || *temp > 100) {
		return &ValidationError{Field: "temp", Reason: fmt.Sprintf("%v is outside [-100, 100]", *temp)}
	}
	if windSpeed != nil && *windSpeed < 0 {
		return &ValidationError{Field: "wind_speed", Reason: fmt.Sprintf("%v is negative", *windSpeed)}
	}
	if humidity != nil && (*humidity < 0 || *humidity > 100) {
		return &ValidationError{Field: "hum", Reason: fmt.Sprintf("%d is outside [0, 100]", *humidity)}
	}
	return nil
}
