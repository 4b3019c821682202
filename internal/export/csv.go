package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
)

const csvContentType = "text/csv"

var csvHeader = []string{
	"id", "loc_id", "location_name", "country", "lat", "lon",
	"date", "temp", "condition", "wind_speed", "hum",
	"triggered_user", "api_source", "created_at",
}

// WeatherCSV exports the combined dataset as CSV: a #-prefixed metadata
// comment block, a header row, then one row per record. When no records
// match the filters it returns ErrNoData instead of a degenerate file.
func (e *Engine) WeatherCSV(ctx context.Context, f Filter) (*File, error) {
	rows, err := e.source.ExportRows(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	meta := e.metadata("CSV", len(rows), &f, "")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Weather Data Export\n")
	fmt.Fprintf(&buf, "# Export Timestamp: %s\n", meta.ExportTimestamp)
	fmt.Fprintf(&buf, "# Export Format: CSV\n")
	fmt.Fprintf(&buf, "# Record Count: %d\n", meta.RecordCount)
	fmt.Fprintf(&buf, "# Filters Applied - Location: %s, Start Date: %s, End Date: %s, User: %s\n",
		orNone(f.Location),
		orNone(strString(meta.FiltersApplied.StartDate)),
		orNone(strString(meta.FiltersApplied.EndDate)),
		orNone(f.User),
	)
	fmt.Fprintf(&buf, "#\n")

	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.LocationID),
			r.LocationName,
			r.Country,
			strconv.FormatFloat(r.Lat, 'f', -1, 64),
			strconv.FormatFloat(r.Lon, 'f', -1, 64),
			formatDate(r.Date),
			strconv.FormatFloat(r.Temp, 'f', -1, 64),
			r.Condition,
			floatString(r.WindSpeed),
			intString(r.Humidity),
			strString(r.TriggeredUser),
			strString(r.APISource),
			formatTimestamp(r.CreatedAt),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV: %w", err)
	}

	return &File{
		Name:        e.filename("weather_export", "csv"),
		ContentType: csvContentType,
		Body:        buf.Bytes(),
	}, nil
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
