package location_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avezina/weathervault/internal/geocode"
	"github.com/avezina/weathervault/internal/location"
)

type mockStore struct {
	getByNameFn func(ctx context.Context, name string) (*location.Location, error)
	getByIDFn   func(ctx context.Context, id int) (*location.Location, error)
	insertFn    func(ctx context.Context, loc location.Location) (*location.Location, error)
}

func (m *mockStore) GetLocationByName(ctx context.Context, name string) (*location.Location, error) {
	return m.getByNameFn(ctx, name)
}
func (m *mockStore) GetLocationByID(ctx context.Context, id int) (*location.Location, error) {
	return m.getByIDFn(ctx, id)
}
func (m *mockStore) InsertLocation(ctx context.Context, loc location.Location) (*location.Location, error) {
	return m.insertFn(ctx, loc)
}

type mockGeocoder struct {
	searchFn func(ctx context.Context, name string, count int, language string) ([]geocode.Result, error)
}

func (m *mockGeocoder) Search(ctx context.Context, name string, count int, language string) ([]geocode.Result, error) {
	return m.searchFn(ctx, name, count, language)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func berlin() *location.Location {
	return &location.Location{ID: 1, Name: "Berlin", Lat: 52.52, Lon: 13.41, Country: "Germany"}
}

func TestResolve_CacheHitSkipsGeocoder(t *testing.T) {
	store := &mockStore{
		getByNameFn: func(_ context.Context, name string) (*location.Location, error) {
			assert.Equal(t, "berlin", name)
			return berlin(), nil
		},
	}
	geocoder := &mockGeocoder{
		searchFn: func(_ context.Context, _ string, _ int, _ string) ([]geocode.Result, error) {
			t.Fatal("geocoder must not be called on a cache hit")
			return nil, nil
		},
	}
	resolver := location.NewResolver(store, geocoder, discardLogger())

	loc, err := resolver.Resolve(context.Background(), "berlin")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 1, loc.ID)
}

func TestResolve_MissGeocodesAndPersists(t *testing.T) {
	inserted := false
	store := &mockStore{
		getByNameFn: func(_ context.Context, _ string) (*location.Location, error) {
			return nil, nil
		},
		insertFn: func(_ context.Context, loc location.Location) (*location.Location, error) {
			inserted = true
			assert.Equal(t, "Berlin", loc.Name)
			assert.Equal(t, 52.52, loc.Lat)
			assert.Equal(t, 13.41, loc.Lon)
			assert.Equal(t, "Germany", loc.Country)
			stored := loc
			stored.ID = 1
			return &stored, nil
		},
	}
	geocoder := &mockGeocoder{
		searchFn: func(_ context.Context, name string, count int, language string) ([]geocode.Result, error) {
			assert.Equal(t, "Berlin", name)
			assert.Equal(t, 1, count)
			assert.Equal(t, "en", language)
			return []geocode.Result{
				{Latitude: 52.52, Longitude: 13.41, Name: "Berlin", Country: "Germany"},
			}, nil
		},
	}
	resolver := location.NewResolver(store, geocoder, discardLogger())

	loc, err := resolver.Resolve(context.Background(), "Berlin")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.True(t, inserted)
	assert.Equal(t, 1, loc.ID, "resolve returns the store-assigned id")
}

func TestResolve_FirstMatchWins(t *testing.T) {
	store := &mockStore{
		getByNameFn: func(_ context.Context, _ string) (*location.Location, error) { return nil, nil },
		insertFn: func(_ context.Context, loc location.Location) (*location.Location, error) {
			stored := loc
			stored.ID = 5
			return &stored, nil
		},
	}
	geocoder := &mockGeocoder{
		searchFn: func(_ context.Context, _ string, _ int, _ string) ([]geocode.Result, error) {
			return []geocode.Result{
				{Latitude: 52.52, Longitude: 13.41, Name: "Berlin", Country: "Germany"},
				{Latitude: 44.47, Longitude: -71.19, Name: "Berlin", Country: "United States"},
			}, nil
		},
	}
	resolver := location.NewResolver(store, geocoder, discardLogger())

	loc, err := resolver.Resolve(context.Background(), "Berlin")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "Germany", loc.Country, "only the best-ranked match is kept")
}

func TestResolve_ZeroResultsIsNotFoundNotError(t *testing.T) {
	store := &mockStore{
		getByNameFn: func(_ context.Context, _ string) (*location.Location, error) { return nil, nil },
		insertFn: func(_ context.Context, _ location.Location) (*location.Location, error) {
			t.Fatal("nothing should be inserted for an unknown name")
			return nil, nil
		},
	}
	geocoder := &mockGeocoder{
		searchFn: func(_ context.Context, _ string, _ int, _ string) ([]geocode.Result, error) {
			return nil, nil
		},
	}
	resolver := location.NewResolver(store, geocoder, discardLogger())

	loc, err := resolver.Resolve(context.Background(), "Atlantis")
	require.NoError(t, err, "an empty geocoding result is not an error")
	assert.Nil(t, loc)
}

func TestResolve_UpstreamErrorPropagates(t *testing.T) {
	store := &mockStore{
		getByNameFn: func(_ context.Context, _ string) (*location.Location, error) { return nil, nil },
	}
	geocoder := &mockGeocoder{
		searchFn: func(_ context.Context, _ string, _ int, _ string) ([]geocode.Result, error) {
			return nil, fmt.Errorf("wrapped: %w", geocode.ErrUnavailable)
		},
	}
	resolver := location.NewResolver(store, geocoder, discardLogger())

	_, err := resolver.Resolve(context.Background(), "Berlin")
	require.ErrorIs(t, err, geocode.ErrUnavailable)
}

func TestResolve_InvalidGeocoderResultRejected(t *testing.T) {
	store := &mockStore{
		getByNameFn: func(_ context.Context, _ string) (*location.Location, error) { return nil, nil },
		insertFn: func(_ context.Context, _ location.Location) (*location.Location, error) {
			t.Fatal("invalid coordinates must not reach the store")
			return nil, nil
		},
	}
	geocoder := &mockGeocoder{
		searchFn: func(_ context.Context, _ string, _ int, _ string) ([]geocode.Result, error) {
			return []geocode.Result{{Latitude: 123.0, Longitude: 13.41, Name: "Broken", Country: ""}}, nil
		},
	}
	resolver := location.NewResolver(store, geocoder, discardLogger())

	_, err := resolver.Resolve(context.Background(), "Broken")
	require.Error(t, err)
	var verr *location.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestResolve_CaseInsensitiveSecondCall(t *testing.T) {
	// Simulates the store's case-insensitive lookup: after "Berlin" is
	// cached, "BERLIN" hits without a geocoder call.
	cached := map[string]*location.Location{}
	geocoderCalls := 0

	store := &mockStore{
		getByNameFn: func(_ context.Context, name string) (*location.Location, error) {
			return cached[strings.ToLower(name)], nil
		},
		insertFn: func(_ context.Context, loc location.Location) (*location.Location, error) {
			stored := loc
			stored.ID = 1
			cached[strings.ToLower(loc.Name)] = &stored
			return &stored, nil
		},
	}
	geocoder := &mockGeocoder{
		searchFn: func(_ context.Context, _ string, _ int, _ string) ([]geocode.Result, error) {
			geocoderCalls++
			return []geocode.Result{{Latitude: 52.52, Longitude: 13.41, Name: "Berlin", Country: "Germany"}}, nil
		},
	}
	resolver := location.NewResolver(store, geocoder, discardLogger())

	first, err := resolver.Resolve(context.Background(), "Berlin")
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), "BERLIN")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, geocoderCalls, "second resolve must not contact the geocoder")
}

func TestGetByID(t *testing.T) {
	store := &mockStore{
		getByIDFn: func(_ context.Context, id int) (*location.Location, error) {
			if id == 1 {
				return berlin(), nil
			}
			return nil, nil
		},
	}
	resolver := location.NewResolver(store, &mockGeocoder{}, discardLogger())

	loc, err := resolver.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, loc)

	missing, err := resolver.GetByID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
