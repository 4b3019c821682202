// Package export renders filtered weather and location datasets as JSON,
// XML, and CSV attachments. All formats share one filter and one dataset
// query, so the same filters always select the same records regardless of
// encoding.
package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avezina/weathervault/internal/location"
)

// ErrNoData is returned by the CSV export when the filtered result set is
// empty. JSON and XML render an empty envelope instead.
var ErrNoData = errors.New("no data matches the specified filters")

// Filter selects the weather records to export. All supplied criteria are
// ANDed. Location and User are case-insensitive substring matches; the date
// bounds are inclusive and apply to the record's date field.
type Filter struct {
	Location  string
	User      string
	StartDate *time.Time
	EndDate   *time.Time
}

// Row is one weather record joined with its owning location.
type Row struct {
	ID            int
	LocationID    int
	LocationName  string
	Country       string
	Lat           float64
	Lon           float64
	Date          time.Time
	Temp          float64
	Condition     string
	WindSpeed     *float64
	Humidity      *int
	TriggeredUser *string
	APISource     *string
	CreatedAt     time.Time
}

// DataSource is the store-side query surface the engine reads from.
type DataSource interface {
	// ExportRows returns the joined, filtered dataset ordered by date
	// descending with a deterministic tie-break.
	ExportRows(ctx context.Context, f Filter) ([]Row, error)
	// AllLocations returns every cached location ordered by name.
	AllLocations(ctx context.Context) ([]location.Location, error)
}

// File is a rendered export ready to be served as an attachment.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Metadata describes one export in every encoding.
type Metadata struct {
	ExportTimestamp string          `json:"export_timestamp"`
	ExportFormat    string          `json:"export_format"`
	RecordCount     int             `json:"record_count"`
	DataType        string          `json:"data_type,omitempty"`
	FiltersApplied  *FiltersApplied `json:"filters_applied,omitempty"`
}

// FiltersApplied echoes the filter values the caller supplied. Unused
// filters render as null so the reader can tell "not filtered" from
// "filtered by empty string".
type FiltersApplied struct {
	Location  *string `json:"location"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	User      *string `json:"user"`
}

// Engine renders exports from a DataSource.
type Engine struct {
	source DataSource
	now    func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(source DataSource) *Engine {
	return &Engine{source: source, now: time.Now}
}

// NewEngineWithClock constructs an Engine with a fixed clock (for tests).
func NewEngineWithClock(source DataSource, now func() time.Time) *Engine {
	return &Engine{source: source, now: now}
}

func (e *Engine) metadata(format string, count int, f *Filter, dataType string) Metadata {
	m := Metadata{
		ExportTimestamp: e.now().UTC().Format(time.RFC3339),
		ExportFormat:    format,
		RecordCount:     count,
		DataType:        dataType,
	}
	if f != nil {
		m.FiltersApplied = f.applied()
	}
	return m
}

func (f Filter) applied() *FiltersApplied {
	a := &FiltersApplied{}
	if f.Location != "" {
		a.Location = &f.Location
	}
	if f.User != "" {
		a.User = &f.User
	}
	if f.StartDate != nil {
		s := formatDate(*f.StartDate)
		a.StartDate = &s
	}
	if f.EndDate != nil {
		s := formatDate(*f.EndDate)
		a.EndDate = &s
	}
	return a
}

// filename derives the attachment name from the export type and the
// generation timestamp.
func (e *Engine) filename(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), ext)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func floatString(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func intString(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func strString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
