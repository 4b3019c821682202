package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avezina/weathervault/internal/weather"
)

const weatherColumns = "id, loc_id, date, temp, condition, wind_speed, hum, triggered_user, api_source, created_at"

func scanWeather(row pgx.Row) (*weather.Record, error) {
	var rec weather.Record
	err := row.Scan(
		&rec.ID,
		&rec.LocationID,
		&rec.Date,
		&rec.Temp,
		&rec.Condition,
		&rec.WindSpeed,
		&rec.Humidity,
		&rec.TriggeredUser,
		&rec.APISource,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) queryWeather(ctx context.Context, q string, args ...any) ([]weather.Record, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying weather records: %w", err)
	}
	defer rows.Close()

	var records []weather.Record
	for rows.Next() {
		var rec weather.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.LocationID,
			&rec.Date,
			&rec.Temp,
			&rec.Condition,
			&rec.WindSpeed,
			&rec.Humidity,
			&rec.TriggeredUser,
			&rec.APISource,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning weather row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weather rows: %w", err)
	}

	return records, nil
}

// CreateWeather validates and inserts a weather record, returning the
// stored row with its assigned id.
func (r *Repository) CreateWeather(ctx context.Context, rec weather.Record) (*weather.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO weather (loc_id, date, temp, condition, wind_speed, hum, triggered_user, api_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + weatherColumns

	stored, err := scanWeather(r.q.QueryRow(ctx, q,
		rec.LocationID, rec.Date, rec.Temp, rec.Condition,
		rec.WindSpeed, rec.Humidity, rec.TriggeredUser, rec.APISource,
	))
	if err != nil {
		return nil, fmt.Errorf("inserting weather record: %w", err)
	}
	return stored, nil
}

// GetWeatherByID retrieves a weather record by id. Returns nil, nil on a miss.
func (r *Repository) GetWeatherByID(ctx context.Context, id int) (*weather.Record, error) {
	const q = `
		SELECT ` + weatherColumns + `
		FROM weather
		WHERE id = $1
	`

	rec, err := scanWeather(r.q.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("querying weather record %d: %w", id, err)
	}
	return rec, nil
}

// UpdateWeather applies a merge-patch: only non-nil patch fields overwrite
// stored values. Returns nil, nil when the id does not exist.
func (r *Repository) UpdateWeather(ctx context.Context, id int, patch weather.Patch) (*weather.Record, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return r.GetWeatherByID(ctx, id)
	}

	const q = `
		UPDATE weather SET
			date           = COALESCE($2, date),
			temp           = COALESCE($3, temp),
			condition      = COALESCE($4, condition),
			wind_speed     = COALESCE($5, wind_speed),
			hum            = COALESCE($6, hum),
			triggered_user = COALESCE($7, triggered_user),
			api_source     = COALESCE($8, api_source)
		WHERE id = $1
		RETURNING ` + weatherColumns

	rec, err := scanWeather(r.q.QueryRow(ctx, q, id,
		patch.Date, patch.Temp, patch.Condition,
		patch.WindSpeed, patch.Humidity, patch.TriggeredUser, patch.APISource,
	))
	if err != nil {
		return nil, fmt.Errorf("updating weather record %d: %w", id, err)
	}
	return rec, nil
}

// DeleteWeather removes a weather record. The bool reports whether a row
// existed.
func (r *Repository) DeleteWeather(ctx context.Context, id int) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM weather WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting weather record %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// QueryWeatherByLocation returns up to limit records for a location,
// newest date first.
func (r *Repository) QueryWeatherByLocation(ctx context.Context, locationID, limit int) ([]weather.Record, error) {
	const q = `
		SELECT ` + weatherColumns + `
		FROM weather
		WHERE loc_id = $1
		ORDER BY date DESC, id DESC
		LIMIT $2
	`
	return r.queryWeather(ctx, q, locationID, limit)
}

// QueryWeatherByDateRange returns a location's records with start <= date
// <= end, newest date first.
func (r *Repository) QueryWeatherByDateRange(ctx context.Context, locationID int, start, end time.Time) ([]weather.Record, error) {
	const q = `
		SELECT ` + weatherColumns + `
		FROM weather
		WHERE loc_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC, id DESC
	`
	return r.queryWeather(ctx, q, locationID, start, end)
}

// QueryWeatherByUser returns records whose triggering user matches exactly.
// The export path uses a case-insensitive substring match instead; the two
// behaviors are deliberately distinct.
func (r *Repository) QueryWeatherByUser(ctx context.Context, user string) ([]weather.Record, error) {
	const q = `
		SELECT ` + weatherColumns + `
		FROM weather
		WHERE triggered_user = $1
		ORDER BY date DESC, id DESC
	`
	return r.queryWeather(ctx, q, user)
}
