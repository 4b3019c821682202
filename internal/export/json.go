package export

import (
	"context"
	"encoding/json"
	"fmt"
)

const jsonContentType = "application/json"

// jsonRecord is the fully-expanded combined view of one row. Optional
// fields render as null rather than being omitted.
type jsonRecord struct {
	ID            int      `json:"id"`
	LocID         int      `json:"loc_id"`
	LocationName  string   `json:"location_name"`
	Country       string   `json:"country"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Date          string   `json:"date"`
	Temp          float64  `json:"temp"`
	Condition     string   `json:"condition"`
	WindSpeed     *float64 `json:"wind_speed"`
	Humidity      *int     `json:"hum"`
	TriggeredUser *string  `json:"triggered_user"`
	APISource     *string  `json:"api_source"`
	CreatedAt     string   `json:"created_at"`
}

// jsonWeatherRecord is the weather-only view: no join, no location fields.
type jsonWeatherRecord struct {
	ID            int      `json:"id"`
	LocID         int      `json:"loc_id"`
	Date          string   `json:"date"`
	Temp          float64  `json:"temp"`
	Condition     string   `json:"condition"`
	WindSpeed     *float64 `json:"wind_speed"`
	Humidity      *int     `json:"hum"`
	TriggeredUser *string  `json:"triggered_user"`
	APISource     *string  `json:"api_source"`
	CreatedAt     string   `json:"created_at"`
}

type jsonLocation struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Country   string  `json:"country"`
	CreatedAt string  `json:"created_at"`
}

type jsonEnvelope struct {
	Metadata Metadata `json:"metadata"`
	Data     any      `json:"data"`
}

func toJSONRecord(r Row) jsonRecord {
	return jsonRecord{
		ID:            r.ID,
		LocID:         r.LocationID,
		LocationName:  r.LocationName,
		Country:       r.Country,
		Lat:           r.Lat,
		Lon:           r.Lon,
		Date:          formatDate(r.Date),
		Temp:          r.Temp,
		Condition:     r.Condition,
		WindSpeed:     r.WindSpeed,
		Humidity:      r.Humidity,
		TriggeredUser: r.TriggeredUser,
		APISource:     r.APISource,
		CreatedAt:     formatTimestamp(r.CreatedAt),
	}
}

// WeatherJSON exports the combined weather+location dataset as an enveloped
// JSON attachment. An empty result set yields a valid envelope with
// record_count 0 and an empty data array.
func (e *Engine) WeatherJSON(ctx context.Context, f Filter) (*File, error) {
	rows, err := e.source.ExportRows(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}

	records := make([]jsonRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, toJSONRecord(r))
	}

	return e.renderJSON(jsonEnvelope{
		Metadata: e.metadata("JSON", len(records), &f, ""),
		Data:     records,
	}, "weather_export")
}

// WeatherOnlyJSON exports weather records without the location join in the
// output; the location filter is still honored for matching.
func (e *Engine) WeatherOnlyJSON(ctx context.Context, f Filter) (*File, error) {
	rows, err := e.source.ExportRows(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}

	records := make([]jsonWeatherRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, jsonWeatherRecord{
			ID:            r.ID,
			LocID:         r.LocationID,
			Date:          formatDate(r.Date),
			Temp:          r.Temp,
			Condition:     r.Condition,
			WindSpeed:     r.WindSpeed,
			Humidity:      r.Humidity,
			TriggeredUser: r.TriggeredUser,
			APISource:     r.APISource,
			CreatedAt:     formatTimestamp(r.CreatedAt),
		})
	}

	return e.renderJSON(jsonEnvelope{
		Metadata: e.metadata("JSON", len(records), &f, "weather_only"),
		Data:     records,
	}, "weather_only_export")
}

// LocationsJSON exports every cached location, ordered by name.
func (e *Engine) LocationsJSON(ctx context.Context) (*File, error) {
	locs, err := e.source.AllLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}

	records := make([]jsonLocation, 0, len(locs))
	for _, l := range locs {
		records = append(records, jsonLocation{
			ID:        l.ID,
			Name:      l.Name,
			Lat:       l.Lat,
			Lon:       l.Lon,
			Country:   l.Country,
			CreatedAt: formatTimestamp(l.CreatedAt),
		})
	}

	return e.renderJSON(jsonEnvelope{
		Metadata: e.metadata("JSON", len(records), nil, "locations_only"),
		Data:     records,
	}, "locations_export")
}

func (e *Engine) renderJSON(envelope jsonEnvelope, prefix string) (*File, error) {
	body, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling export envelope: %w", err)
	}
	return &File{
		Name:        e.filename(prefix, "json"),
		ContentType: jsonContentType,
		Body:        body,
	}, nil
}
