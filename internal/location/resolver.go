package location

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avezina/weathervault/internal/geocode"
)

// Store defines the persistence operations the resolver needs.
type Store interface {
	// GetLocationByName looks up a location by case-insensitive exact name
	// match. Returns nil, nil when no row matches.
	GetLocationByName(ctx context.Context, name string) (*Location, error)
	// GetLocationByID returns nil, nil when the id does not exist.
	GetLocationByID(ctx context.Context, id int) (*Location, error)
	// InsertLocation persists a validated location and returns the stored row with
	// its assigned id. When a concurrent insert won the unique-name race,
	// the existing row is returned instead of a duplicate.
	InsertLocation(ctx context.Context, loc Location) (*Location, error)
}

// Geocoder is the external geocoding collaborator.
type Geocoder interface {
	Search(ctx context.Context, name string, count int, language string) ([]geocode.Result, error)
}

// Resolver turns place names into persisted Locations, short-circuiting on
// cache hits so the external geocoder is only contacted for unseen names.
type Resolver struct {
	store    Store
	geocoder Geocoder
	log      *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, geocoder Geocoder, log *slog.Logger) *Resolver {
	return &Resolver{store: store, geocoder: geocoder, log: log}
}

// Resolve returns the cached Location for name, or geocodes and persists it
// on a miss. A nil, nil return means the geocoder found nothing for the
// name; that is a valid outcome, distinct from an error.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Location, error) {
	cached, err := r.store.GetLocationByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up location %q: %w", name, err)
	}
	if cached != nil {
		r.log.Info("location cache hit", "name", name, "id", cached.ID)
		return cached, nil
	}

	results, err := r.geocoder.Search(ctx, name, 1, "en")
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", name, err)
	}
	if len(results) == 0 {
		r.log.Warn("no geocoding results", "name", name)
		return nil, nil
	}

	best := results[0]
	loc := Location{
		Name:    best.Name,
		Lat:     best.Latitude,
		Lon:     best.Longitude,
		Country: best.Country,
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("geocoder returned invalid location for %q: %w", name, err)
	}

	stored, err := r.store.InsertLocation(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("caching location %q: %w", name, err)
	}
	r.log.Info("location cached", "name", stored.Name, "id", stored.ID)
	return stored, nil
}

// GetByID is a pass-through to the store. Returns nil, nil on a miss.
func (r *Resolver) GetByID(ctx context.Context, id int) (*Location, error) {
	loc, err := r.store.GetLocationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up location id %d: %w", id, err)
	}
	return loc, nil
}
