package export

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
)

const xmlContentType = "application/xml"

type xmlExport struct {
	XMLName  xml.Name    `xml:"weather_export"`
	Metadata xmlMetadata `xml:"metadata"`
	Data     xmlData     `xml:"data"`
}

type xmlMetadata struct {
	ExportTimestamp string     `xml:"export_timestamp"`
	ExportFormat    string     `xml:"export_format"`
	RecordCount     int        `xml:"record_count"`
	Filters         xmlFilters `xml:"filters_applied"`
}

type xmlFilters struct {
	Location  string `xml:"location"`
	StartDate string `xml:"start_date"`
	EndDate   string `xml:"end_date"`
	User      string `xml:"user"`
}

type xmlData struct {
	Records []xmlRecord `xml:"weather_record"`
}

// xmlRecord keeps every field as a string so absent values render as empty
// element bodies rather than omitted elements.
type xmlRecord struct {
	ID            string `xml:"id"`
	LocID         string `xml:"loc_id"`
	LocationName  string `xml:"location_name"`
	Country       string `xml:"country"`
	Lat           string `xml:"lat"`
	Lon           string `xml:"lon"`
	Date          string `xml:"date"`
	Temp          string `xml:"temp"`
	Condition     string `xml:"condition"`
	WindSpeed     string `xml:"wind_speed"`
	Humidity      string `xml:"hum"`
	TriggeredUser string `xml:"triggered_user"`
	APISource     string `xml:"api_source"`
	CreatedAt     string `xml:"created_at"`
}

// WeatherXML exports the combined dataset as an XML attachment. An empty
// result set yields a valid document with record_count 0 and an empty data
// element.
func (e *Engine) WeatherXML(ctx context.Context, f Filter) (*File, error) {
	rows, err := e.source.ExportRows(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}

	doc := xmlExport{
		Data: xmlData{Records: make([]xmlRecord, 0, len(rows))},
	}

	meta := e.metadata("XML", len(rows), &f, "")
	doc.Metadata = xmlMetadata{
		ExportTimestamp: meta.ExportTimestamp,
		ExportFormat:    meta.ExportFormat,
		RecordCount:     meta.RecordCount,
		Filters: xmlFilters{
			Location:  f.Location,
			StartDate: strString(meta.FiltersApplied.StartDate),
			EndDate:   strString(meta.FiltersApplied.EndDate),
			User:      f.User,
		},
	}

	for _, r := range rows {
		doc.Data.Records = append(doc.Data.Records, xmlRecord{
			ID:            strconv.Itoa(r.ID),
			LocID:         strconv.Itoa(r.LocationID),
			LocationName:  r.LocationName,
			Country:       r.Country,
			Lat:           strconv.FormatFloat(r.Lat, 'f', -1, 64),
			Lon:           strconv.FormatFloat(r.Lon, 'f', -1, 64),
			Date:          formatDate(r.Date),
			Temp:          strconv.FormatFloat(r.Temp, 'f', -1, 64),
			Condition:     r.Condition,
			WindSpeed:     floatString(r.WindSpeed),
			Humidity:      intString(r.Humidity),
			TriggeredUser: strString(r.TriggeredUser),
			APISource:     strString(r.APISource),
			CreatedAt:     formatTimestamp(r.CreatedAt),
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling export document: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	return &File{
		Name:        e.filename("weather_export", "xml"),
		ContentType: xmlContentType,
		Body:        body,
	}, nil
}
