package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/avezina/weathervault/internal/export"
	"github.com/avezina/weathervault/internal/geocode"
	"github.com/avezina/weathervault/internal/location"
	"github.com/avezina/weathervault/internal/meteo"
	"github.com/avezina/weathervault/internal/weather"
)

const dateLayout = "2006-01-02"

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	resolver    LocationResolver
	store       WeatherStore
	forecast    ForecastClient
	bundler     ForecastBundler
	invalidator CacheInvalidator
	exporter    Exporter
	validate    *validator.Validate
	log         *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(resolver LocationResolver, store WeatherStore, forecast ForecastClient, bundler ForecastBundler, invalidator CacheInvalidator, exporter Exporter, log *slog.Logger) *Handlers {
	return &Handlers{
		resolver:    resolver,
		store:       store,
		forecast:    forecast,
		bundler:     bundler,
		invalidator: invalidator,
		exporter:    exporter,
		validate:    validator.New(),
		log:         log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolveQueryName resolves the ?name= query parameter to a location,
// writing the error response itself when resolution fails.
func (h *Handlers) resolveQueryName(w http.ResponseWriter, r *http.Request) *location.Location {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return nil
	}

	loc, err := h.resolver.Resolve(r.Context(), name)
	if err != nil {
		var verr *location.ValidationError
		switch {
		case errors.Is(err, geocode.ErrUnavailable):
			h.log.Error("geocoding unavailable", "name", name, "err", err)
			writeError(w, http.StatusBadGateway, "geocoding service unavailable")
		case errors.As(err, &verr):
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
		default:
			h.log.Error("resolve failed", "name", name, "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return nil
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no location found for %q", name))
		return nil
	}
	return loc
}

// GetGeodata handles GET /geodata?name=.
func (h *Handlers) GetGeodata(w http.ResponseWriter, r *http.Request) {
	loc := h.resolveQueryName(w, r)
	if loc == nil {
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// GetGeodataByID handles GET /geodata/{id}.
func (h *Handlers) GetGeodataByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	loc, err := h.resolver.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("geodata lookup failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no location with id %d", id))
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// writeForecast maps a forecast fetch result to the response, sharing the
// error handling between the current, daily, hourly, and full endpoints.
func (h *Handlers) writeForecast(w http.ResponseWriter, loc *location.Location, payload any, err error) {
	if err != nil {
		if errors.Is(err, meteo.ErrUnavailable) {
			h.log.Error("forecast unavailable", "location", loc.Name, "err", err)
			writeError(w, http.StatusBadGateway, "weather service unavailable")
			return
		}
		h.log.Error("forecast fetch failed", "location", loc.Name, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// GetCurrentWeather handles GET /weather/current?name=.
func (h *Handlers) GetCurrentWeather(w http.ResponseWriter, r *http.Request) {
	loc := h.resolveQueryName(w, r)
	if loc == nil {
		return
	}
	current, err := h.forecast.FetchCurrent(r.Context(), loc.Lat, loc.Lon, nil)
	h.writeForecast(w, loc, current, err)
}

// GetDailyWeather handles GET /weather/daily?name=[&start_date=&end_date=].
func (h *Handlers) GetDailyWeather(w http.ResponseWriter, r *http.Request) {
	loc := h.resolveQueryName(w, r)
	if loc == nil {
		return
	}

	start, ok := parseDateParam(w, r, "start_date")
	if !ok {
		return
	}
	end, ok := parseDateParam(w, r, "end_date")
	if !ok {
		return
	}

	daily, err := h.forecast.FetchDaily(r.Context(), loc.Lat, loc.Lon, start, end)
	h.writeForecast(w, loc, daily, err)
}

// GetHourlyWeather handles GET /weather/hourly?name=.
func (h *Handlers) GetHourlyWeather(w http.ResponseWriter, r *http.Request) {
	loc := h.resolveQueryName(w, r)
	if loc == nil {
		return
	}
	hourly, err := h.forecast.FetchHourly(r.Context(), loc.Lat, loc.Lon)
	h.writeForecast(w, loc, hourly, err)
}

// GetFullWeather handles GET /weather/full?name=. The bundle carries
// whichever of the three views could be fetched.
func (h *Handlers) GetFullWeather(w http.ResponseWriter, r *http.Request) {
	loc := h.resolveQueryName(w, r)
	if loc == nil {
		return
	}
	bundle, err := h.bundler.FetchAll(r.Context(), loc.Lat, loc.Lon)
	h.writeForecast(w, loc, bundle, err)
}

// RefreshWeather handles POST /weather/refresh?name=. Cached upstream
// responses for the location are dropped before fetching, so the returned
// bundle is freshly pulled.
func (h *Handlers) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	loc := h.resolveQueryName(w, r)
	if loc == nil {
		return
	}

	if err := h.invalidator.Invalidate(r.Context(), loc.Lat, loc.Lon); err != nil {
		h.log.Warn("cache invalidation failed", "location", loc.Name, "err", err)
	}

	bundle, err := h.bundler.FetchAll(r.Context(), loc.Lat, loc.Lon)
	h.writeForecast(w, loc, bundle, err)
}

// weatherResponse is the JSON shape of a stored weather record.
type weatherResponse struct {
	ID            int      `json:"id"`
	LocationID    int      `json:"loc_id"`
	Date          string   `json:"date"`
	Temp          float64  `json:"temp"`
	Condition     string   `json:"condition"`
	WindSpeed     *float64 `json:"wind_speed"`
	Humidity      *int     `json:"hum"`
	TriggeredUser *string  `json:"triggered_user"`
	APISource     *string  `json:"api_source"`
	CreatedAt     string   `json:"created_at"`
}

func toWeatherResponse(rec weather.Record) weatherResponse {
	return weatherResponse{
		ID:            rec.ID,
		LocationID:    rec.LocationID,
		Date:          rec.Date.Format(dateLayout),
		Temp:          rec.Temp,
		Condition:     rec.Condition,
		WindSpeed:     rec.WindSpeed,
		Humidity:      rec.Humidity,
		TriggeredUser: rec.TriggeredUser,
		APISource:     rec.APISource,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GetWeatherByUser handles GET /weather/user?user=. The match is exact.
func (h *Handlers) GetWeatherByUser(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	records, err := h.store.QueryWeatherByUser(r.Context(), user)
	if err != nil {
		h.log.Error("user query failed", "user", user, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no weather records for user %q", user))
		return
	}

	out := make([]weatherResponse, len(records))
	for i, rec := range records {
		out[i] = toWeatherResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// defaultLocationLimit bounds GET /weather/location/{id} when no limit is given.
const defaultLocationLimit = 10

// ListWeatherByLocation handles GET /weather/location/{id}. With both
// start_date and end_date the records inside the inclusive range are
// returned; otherwise the newest records up to ?limit=.
func (h *Handlers) ListWeatherByLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	start, ok := parseDateParam(w, r, "start_date")
	if !ok {
		return
	}
	end, ok := parseDateParam(w, r, "end_date")
	if !ok {
		return
	}
	if start.IsZero() != end.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date and end_date must be supplied together")
		return
	}

	var records []weather.Record
	if !start.IsZero() {
		records, err = h.store.QueryWeatherByDateRange(r.Context(), id, start, end)
	} else {
		limit := defaultLocationLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
		}
		records, err = h.store.QueryWeatherByLocation(r.Context(), id, limit)
	}
	if err != nil {
		h.log.Error("location query failed", "loc_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no weather records for location %d", id))
		return
	}

	out := make([]weatherResponse, len(records))
	for i, rec := range records {
		out[i] = toWeatherResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// createWeatherRequest is the POST /weather/create payload.
type createWeatherRequest struct {
	LocationID    int      `json:"loc_id" validate:"required,gt=0"`
	Date          string   `json:"date" validate:"required,datetime=2006-01-02"`
	Temp          float64  `json:"temp" validate:"gte=-100,lte=100"`
	Condition     string   `json:"condition" validate:"required"`
	WindSpeed     *float64 `json:"wind_speed" validate:"omitempty,gte=0"`
	Humidity      *int     `json:"hum" validate:"omitempty,gte=0,lte=100"`
	TriggeredUser *string  `json:"triggered_user"`
	APISource     *string  `json:"api_source"`
}

// CreateWeather handles POST /weather/create.
func (h *Handlers) CreateWeather(w http.ResponseWriter, r *http.Request) {
	var req createWeatherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "date must be formatted YYYY-MM-DD")
		return
	}

	rec := weather.Record{
		LocationID:    req.LocationID,
		Date:          date,
		Temp:          req.Temp,
		Condition:     req.Condition,
		WindSpeed:     req.WindSpeed,
		Humidity:      req.Humidity,
		TriggeredUser: req.TriggeredUser,
		APISource:     req.APISource,
	}

	created, err := h.store.CreateWeather(r.Context(), rec)
	if err != nil {
		var verr *weather.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		h.log.Error("weather create failed", "loc_id", req.LocationID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "weather record created successfully",
		"record":  toWeatherResponse(*created),
	})
}

// GetWeather handles GET /weather/{id}.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	id, ok := weatherID(w, r)
	if !ok {
		return
	}

	rec, err := h.store.GetWeatherByID(r.Context(), id)
	if err != nil {
		h.log.Error("weather get failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no weather record with id %d", id))
		return
	}
	writeJSON(w, http.StatusOK, toWeatherResponse(*rec))
}

// updateWeatherRequest is the PUT /weather/{id} merge-patch payload. Absent
// fields keep their stored values.
type updateWeatherRequest struct {
	Date          *string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Temp          *float64 `json:"temp" validate:"omitempty,gte=-100,lte=100"`
	Condition     *string  `json:"condition"`
	WindSpeed     *float64 `json:"wind_speed" validate:"omitempty,gte=0"`
	Humidity      *int     `json:"hum" validate:"omitempty,gte=0,lte=100"`
	TriggeredUser *string  `json:"triggered_user"`
	APISource     *string  `json:"api_source"`
}

// UpdateWeather handles PUT /weather/{id}.
func (h *Handlers) UpdateWeather(w http.ResponseWriter, r *http.Request) {
	id, ok := weatherID(w, r)
	if !ok {
		return
	}

	var req updateWeatherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	patch := weather.Patch{
		Temp:          req.Temp,
		Condition:     req.Condition,
		WindSpeed:     req.WindSpeed,
		Humidity:      req.Humidity,
		TriggeredUser: req.TriggeredUser,
		APISource:     req.APISource,
	}
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "date must be formatted YYYY-MM-DD")
			return
		}
		patch.Date = &date
	}

	updated, err := h.store.UpdateWeather(r.Context(), id, patch)
	if err != nil {
		var verr *weather.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		h.log.Error("weather update failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no weather record with id %d", id))
		return
	}
	writeJSON(w, http.StatusOK, toWeatherResponse(*updated))
}

// DeleteWeather handles DELETE /weather/{id}.
func (h *Handlers) DeleteWeather(w http.ResponseWriter, r *http.Request) {
	id, ok := weatherID(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteWeather(r.Context(), id)
	if err != nil {
		h.log.Error("weather delete failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no weather record with id %d", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func weatherID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

// parseDateParam parses an optional YYYY-MM-DD query parameter. A missing
// parameter yields the zero time.
func parseDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be formatted YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

// exportFilter builds the dataset filter from the request's query string.
func exportFilter(w http.ResponseWriter, r *http.Request) (export.Filter, bool) {
	f := export.Filter{
		Location: r.URL.Query().Get("location"),
		User:     r.URL.Query().Get("user"),
	}
	if start, ok := parseDateParam(w, r, "start_date"); !ok {
		return f, false
	} else if !start.IsZero() {
		f.StartDate = &start
	}
	if end, ok := parseDateParam(w, r, "end_date"); !ok {
		return f, false
	} else if !end.IsZero() {
		f.EndDate = &end
	}
	return f, true
}

// serveExport writes a rendered export as a download attachment.
func (h *Handlers) serveExport(w http.ResponseWriter, file *export.File, err error) {
	if err != nil {
		if errors.Is(err, export.ErrNoData) {
			writeError(w, http.StatusNotFound, "no data matches the specified filters")
			return
		}
		h.log.Error("export failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

// ExportJSON handles GET /export/json.
func (h *Handlers) ExportJSON(w http.ResponseWriter, r *http.Request) {
	f, ok := exportFilter(w, r)
	if !ok {
		return
	}
	file, err := h.exporter.WeatherJSON(r.Context(), f)
	h.serveExport(w, file, err)
}

// ExportXML handles GET /export/xml.
func (h *Handlers) ExportXML(w http.ResponseWriter, r *http.Request) {
	f, ok := exportFilter(w, r)
	if !ok {
		return
	}
	file, err := h.exporter.WeatherXML(r.Context(), f)
	h.serveExport(w, file, err)
}

// ExportCSV handles GET /export/csv.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	f, ok := exportFilter(w, r)
	if !ok {
		return
	}
	file, err := h.exporter.WeatherCSV(r.Context(), f)
	h.serveExport(w, file, err)
}

// ExportWeatherJSON handles GET /export/weather/json.
func (h *Handlers) ExportWeatherJSON(w http.ResponseWriter, r *http.Request) {
	f, ok := exportFilter(w, r)
	if !ok {
		return
	}
	file, err := h.exporter.WeatherOnlyJSON(r.Context(), f)
	h.serveExport(w, file, err)
}

// ExportLocationsJSON handles GET /export/locations/json.
func (h *Handlers) ExportLocationsJSON(w http.ResponseWriter, r *http.Request) {
	file, err := h.exporter.LocationsJSON(r.Context())
	h.serveExport(w, file, err)
}
