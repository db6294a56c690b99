package coordinator

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/homey"
	"github.com/i474232898/easy-homey/internal/location"
)

// FuelSource fetches the fuel bundle.
type FuelSource struct {
	API       FuelAPI
	Locations location.Resolver
	Logger    *slog.Logger

	CheapestLocation string
	NearestLocation  string
	UserLocations    []config.UserLocation
	StationIDs       []string
	Radius           float64
	FuelTypes        []string
}

// NewFuelSource builds a FuelSource from settings.
func NewFuelSource(api FuelAPI, locs location.Resolver, s config.Settings, logger *slog.Logger) *FuelSource {
	return &FuelSource{
		API:              api,
		Locations:        locs,
		Logger:           logger,
		CheapestLocation: s.CheapestLocation(),
		NearestLocation:  s.NearestLocation(),
		UserLocations:    s.UserLocations,
		StationIDs:       s.StationIDs,
		Radius:           s.SearchRadius,
		FuelTypes:        config.PetrolTypes,
	}
}

// Fetch runs one petrol refresh. Unresolvable locations are skipped and
// failing station-id lookups are dropped; any other API error aborts.
func (f *FuelSource) Fetch(ctx context.Context) (FuelBundle, error) {
	var b FuelBundle
	resolved := make(map[string]*location.Coordinates)

	if pos := f.resolve(ctx, resolved, f.CheapestLocation); pos != nil {
		b.CheapestStations = make(map[string]*homey.Station, len(f.FuelTypes))
		for _, fuel := range f.FuelTypes {
			st, err := f.API.CheapestPetrolStation(ctx, pos.Latitude, pos.Longitude, f.Radius, fuel)
			if err != nil {
				return FuelBundle{}, err
			}
			b.CheapestStations[fuel] = st
		}
	}

	if pos := f.resolve(ctx, resolved, f.NearestLocation); pos != nil {
		stations, err := f.API.SearchPetrolStations(ctx, pos.Latitude, pos.Longitude, f.Radius)
		if err != nil {
			return FuelBundle{}, err
		}
		b.AllStations = stations
		b.NearestStation = Nearest(stations)
	}

	for _, ul := range f.UserLocations {
		if ul.Name == "" {
			continue
		}
		pos := f.resolve(ctx, resolved, ul.EntityID)
		if pos == nil {
			continue
		}
		stations, err := f.API.SearchPetrolStations(ctx, pos.Latitude, pos.Longitude, f.Radius)
		if err != nil {
			return FuelBundle{}, err
		}
		if nearest := Nearest(stations); nearest != nil {
			if b.UserNearestStations == nil {
				b.UserNearestStations = make(map[string]*homey.Station)
			}
			b.UserNearestStations[ul.Name] = nearest
		}
	}

	if len(f.StationIDs) > 0 {
		b.StationsByID = f.fetchStations(ctx)
	}
	return b, nil
}

// fetchStations looks up every tracked id concurrently, keeping only successes.
func (f *FuelSource) fetchStations(ctx context.Context) map[string]*homey.Station {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[string]*homey.Station, len(f.StationIDs))
	)
	for _, id := range f.StationIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			st, err := f.API.PetrolStation(ctx, id)
			if err != nil {
				f.logger().Warn("station lookup failed", "station_id", id, "error", err)
				return
			}
			mu.Lock()
			out[id] = st
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}

func (f *FuelSource) resolve(ctx context.Context, memo map[string]*location.Coordinates, ref string) *location.Coordinates {
	if ref == "" {
		return nil
	}
	if pos, ok := memo[ref]; ok {
		return pos
	}
	var pos *location.Coordinates
	if c, err := f.Locations.Resolve(ctx, ref); err != nil {
		f.logger().Warn("cannot resolve location", "location", ref, "error", err)
	} else {
		pos = &c
	}
	memo[ref] = pos
	return pos
}

func (f *FuelSource) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

// Nearest returns the station with the smallest reported distance. Missing
// distances sort last and the first of equal distances wins.
func Nearest(stations []homey.Station) *homey.Station {
	if len(stations) == 0 {
		return nil
	}
	best, bestDist := 0, math.Inf(1)
	for i := range stations {
		d, ok := stations[i].Distance()
		if !ok {
			d = math.Inf(1)
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return &stations[best]
}
