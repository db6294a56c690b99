package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/homey"
	"github.com/i474232898/easy-homey/internal/location"
)

type fakeFuelAPI struct {
	mu         sync.Mutex
	cheapest   map[string]*homey.Station
	search     map[string][]homey.Station // by "lat,lon"
	byID       map[string]*homey.Station
	cheapErr   error
	searchErr  error
	cheapCalls []string
}

func (f *fakeFuelAPI) PetrolStation(_ context.Context, id string) (*homey.Station, error) {
	if st, ok := f.byID[id]; ok {
		return st, nil
	}
	return nil, &homey.APIError{Endpoint: "/patrol-stations/" + id, StatusCode: 404}
}

func (f *fakeFuelAPI) SearchPetrolStations(_ context.Context, lat, lon, _ float64) ([]homey.Station, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search[fmt.Sprintf("%g,%g", lat, lon)], nil
}

func (f *fakeFuelAPI) CheapestPetrolStation(_ context.Context, _, _, _ float64, fuel string) (*homey.Station, error) {
	f.mu.Lock()
	f.cheapCalls = append(f.cheapCalls, fuel)
	f.mu.Unlock()
	if f.cheapErr != nil {
		return nil, f.cheapErr
	}
	return f.cheapest[fuel], nil
}

func dist(v float64) *homey.StationLocation { return &homey.StationLocation{Distance: &v} }

func staticResolver() location.Resolver { return &location.Router{} }

func TestNearest(t *testing.T) {
	assert.Nil(t, Nearest(nil))

	stations := []homey.Station{
		{StationID: "none"},
		{StationID: "far", Location: dist(4)},
		{StationID: "near-a", Location: dist(1.5)},
		{StationID: "near-b", Location: dist(1.5)},
	}
	assert.Equal(t, "near-a", Nearest(stations).StationID)

	allMissing := []homey.Station{{StationID: "a"}, {StationID: "b"}}
	assert.Equal(t, "a", Nearest(allMissing).StationID)
}

func TestFuelSource_Fetch(t *testing.T) {
	api := &fakeFuelAPI{
		cheapest: map[string]*homey.Station{
			"E5":     {StationID: "c-e5"},
			"E10":    {StationID: "c-e10"},
			"DIESEL": {StationID: "c-diesel"},
		},
		search: map[string][]homey.Station{
			"1,2": {{StationID: "home-far", Location: dist(3)}, {StationID: "home-near", Location: dist(0.4)}},
			"5,6": {{StationID: "work-near", Location: dist(0.9)}},
		},
		byID: map[string]*homey.Station{"id-1": {StationID: "id-1"}},
	}
	src := &FuelSource{
		API:              api,
		Locations:        staticResolver(),
		CheapestLocation: "1,2",
		NearestLocation:  "1,2",
		UserLocations: []config.UserLocation{
			{Name: "Work", EntityID: "5,6"},
			{Name: "Nowhere", EntityID: "zone.unknown"},
			{Name: "", EntityID: "1,2"},
		},
		StationIDs: []string{"id-1", "id-broken"},
		Radius:     15,
		FuelTypes:  config.PetrolTypes,
	}

	b, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"E5", "E10", "DIESEL"}, api.cheapCalls)
	require.Len(t, b.CheapestStations, 3)
	assert.Equal(t, "c-diesel", b.CheapestStations["DIESEL"].StationID)

	require.NotNil(t, b.NearestStation)
	assert.Equal(t, "home-near", b.NearestStation.StationID)
	assert.Len(t, b.AllStations, 2)

	require.Len(t, b.UserNearestStations, 1)
	assert.Equal(t, "work-near", b.UserNearestStations["Work"].StationID)

	require.Len(t, b.StationsByID, 1)
	assert.Contains(t, b.StationsByID, "id-1")
	assert.NotContains(t, b.StationsByID, "id-broken")
}

func TestFuelSource_SkipsUnresolvedLocations(t *testing.T) {
	api := &fakeFuelAPI{}
	src := &FuelSource{
		API:              api,
		Locations:        staticResolver(),
		CheapestLocation: "zone.home",
		FuelTypes:        config.PetrolTypes,
	}

	b, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b.CheapestStations)
	assert.Nil(t, b.NearestStation)
	assert.Empty(t, api.cheapCalls)
}

func TestFuelSource_ClientErrorAborts(t *testing.T) {
	cause := &homey.TimeoutError{Endpoint: "/patrol-stations", Err: context.DeadlineExceeded}
	src := &FuelSource{
		API:             &fakeFuelAPI{searchErr: cause},
		Locations:       staticResolver(),
		NearestLocation: "1,2",
	}

	_, err := src.Fetch(context.Background())
	assert.True(t, errors.Is(err, homey.ErrAPI))

	c := New(NamePetrol, 0, src.Fetch, Options{})
	res := c.Refresh(context.Background())
	assert.ErrorIs(t, res.Err, ErrUpdateFailed)
	var te *homey.TimeoutError
	assert.ErrorAs(t, res.Err, &te)
}

func TestNewFuelSource_UsesLocationFallback(t *testing.T) {
	s := config.Settings{
		LocationEntityID:        "zone.home",
		LocationEntityIDNearest: "person.anna",
		SearchRadius:            7,
		StationIDs:              []string{"x"},
	}
	src := NewFuelSource(&fakeFuelAPI{}, staticResolver(), s, nil)
	assert.Equal(t, "zone.home", src.CheapestLocation)
	assert.Equal(t, "person.anna", src.NearestLocation)
	assert.InDelta(t, 7.0, src.Radius, 0)
	assert.Equal(t, []string{"x"}, src.StationIDs)
	assert.Equal(t, config.PetrolTypes, src.FuelTypes)
}
