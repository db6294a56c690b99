package coordinator

import (
	"context"

	"github.com/i474232898/easy-homey/internal/homey"
)

// FuelBundle is the petrol coordinator's result. Nil fields mean the data
// was not fetched, typically because a location could not be resolved.
type FuelBundle struct {
	CheapestStations    map[string]*homey.Station // by fuel type
	NearestStation      *homey.Station
	AllStations         []homey.Station
	UserNearestStations map[string]*homey.Station // by user location name
	StationsByID        map[string]*homey.Station
}

// WeatherBundle holds warnings and upfront information for one warning cell.
type WeatherBundle struct {
	Warnings *homey.WarningList
	Upfront  *homey.WarningList
}

// PollenBundle holds the full forecast and the single most severe flight.
type PollenBundle struct {
	AllPollen *homey.PollenFlights
	Highest   *homey.HighestPollen
}

// WasteBundle holds the per-type upcoming collections and the next collection day.
type WasteBundle struct {
	Upcoming *homey.WasteSchedule
	Next     *homey.WasteSchedule
}

// FuelAPI is the subset of the API client used by the petrol coordinator.
type FuelAPI interface {
	PetrolStation(ctx context.Context, stationID string) (*homey.Station, error)
	SearchPetrolStations(ctx context.Context, lat, lon, distance float64) ([]homey.Station, error)
	CheapestPetrolStation(ctx context.Context, lat, lon, distance float64, petrolType string) (*homey.Station, error)
}

// WeatherAPI is the subset of the API client used by the weather coordinator.
type WeatherAPI interface {
	WeatherWarnings(ctx context.Context, cellID, warningType string) (*homey.WarningList, error)
}

// PollenAPI is the subset of the API client used by the pollen coordinator.
type PollenAPI interface {
	PollenFlight(ctx context.Context) (*homey.PollenFlights, error)
	HighestPollenFlight(ctx context.Context) (*homey.HighestPollen, error)
}

// WasteAPI is the subset of the API client used by the waste coordinator.
type WasteAPI interface {
	UpcomingWasteCollections(ctx context.Context) (*homey.WasteSchedule, error)
	NextWasteCollection(ctx context.Context) (*homey.WasteSchedule, error)
}
