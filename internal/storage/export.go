package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/avezina/weathervault/internal/export"
)

// exportWhere folds the optional export filters into a single WHERE clause.
// Every export format goes through this one builder, so identical filters
// always select identical rows.
func exportWhere(f export.Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Location != "" {
		add("l.name ILIKE $%d", "%"+f.Location+"%")
	}
	if f.User != "" {
		add("w.triggered_user ILIKE $%d", "%"+f.User+"%")
	}
	if f.StartDate != nil {
		add("w.date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("w.date <= $%d", *f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// ExportRows returns the joined weather+location dataset selected by the
// filter, ordered by date descending with id as the deterministic tie-break.
func (r *Repository) ExportRows(ctx context.Context, f export.Filter) ([]export.Row, error) {
	where, args := exportWhere(f)

	q := `
		SELECT w.id, w.loc_id, l.name, l.country, l.lat, l.lon,
		       w.date, w.temp, w.condition, w.wind_speed, w.hum,
		       w.triggered_user, w.api_source, w.created_at
		FROM weather w
		JOIN location l ON l.id = w.loc_id
		` + where + `
		ORDER BY w.date DESC, w.id DESC
	`

	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}
	defer rows.Close()

	var result []export.Row
	for rows.Next() {
		var row export.Row
		if err := rows.Scan(
			&row.ID,
			&row.LocationID,
			&row.LocationName,
			&row.Country,
			&row.Lat,
			&row.Lon,
			&row.Date,
			&row.Temp,
			&row.Condition,
			&row.WindSpeed,
			&row.Humidity,
			&row.TriggeredUser,
			&row.APISource,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating export rows: %w", err)
	}

	return result, nil
}
