// Package storage provides the relational store for locations and weather
// records, backed by PostgreSQL via pgx.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avezina/weathervault/internal/location"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for location and weather records.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

const locationColumns = "id, name, lat, lon, country, created_at"

func scanLocation(row pgx.Row) (*location.Location, error) {
	var l location.Location
	err := row.Scan(&l.ID, &l.Name, &l.Lat, &l.Lon, &l.Country, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// GetLocationByName looks up a location by case-insensitive exact name
// match. Returns nil, nil when no row matches.
func (r *Repository) GetLocationByName(ctx context.Context, name string) (*location.Location, error) {
	const q = `
		SELECT ` + locationColumns + `
		FROM location
		WHERE LOWER(name) = LOWER($1)
	`

	l, err := scanLocation(r.q.QueryRow(ctx, q, name))
	if err != nil {
		return nil, fmt.Errorf("querying location by name %q: %w", name, err)
	}
	return l, nil
}

// GetLocationByID retrieves a location by id. Returns nil, nil on a miss.
func (r *Repository) GetLocationByID(ctx context.Context, id int) (*location.Location, error) {
	const q = `
		SELECT ` + locationColumns + `
		FROM location
		WHERE id = $1
	`

	l, err := scanLocation(r.q.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("querying location by id %d: %w", id, err)
	}
	return l, nil
}

// InsertLocation validates and persists a location, returning the stored
// row with its assigned id. When a concurrent insert won the race on the
// case-insensitive unique name, the winner's row is returned instead of a
// duplicate.
func (r *Repository) InsertLocation(ctx context.Context, loc location.Location) (*location.Location, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO location (name, lat, lon, country)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (LOWER(name)) DO NOTHING
		RETURNING ` + locationColumns

	l, err := scanLocation(r.q.QueryRow(ctx, q, loc.Name, loc.Lat, loc.Lon, loc.Country))
	if err != nil {
		return nil, fmt.Errorf("inserting location %q: %w", loc.Name, err)
	}
	if l != nil {
		return l, nil
	}

	// Conflict: a concurrent resolve inserted the name first. Re-read it.
	existing, err := r.GetLocationByName(ctx, loc.Name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("location %q vanished after insert conflict", loc.Name)
	}
	return existing, nil
}

// AllLocations returns every cached location ordered by name.
func (r *Repository) AllLocations(ctx context.Context) ([]location.Location, error) {
	const q = `
		SELECT ` + locationColumns + `
		FROM location
		ORDER BY name
	`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locs []location.Location
	for rows.Next() {
		var l location.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lon, &l.Country, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		locs = append(locs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location rows: %w", err)
	}

	return locs, nil
}
