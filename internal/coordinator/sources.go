package coordinator

import (
	"context"

	"github.com/i474232898/easy-homey/internal/homey"
)

// WeatherFetch returns a FetchFunc for warnings and upfront information of cellID.
func WeatherFetch(api WeatherAPI, cellID string) FetchFunc[WeatherBundle] {
	return func(ctx context.Context) (WeatherBundle, error) {
		warnings, err := api.WeatherWarnings(ctx, cellID, homey.WarningTypeWarning)
		if err != nil {
			return WeatherBundle{}, err
		}
		upfront, err := api.WeatherWarnings(ctx, cellID, homey.WarningTypeUpfront)
		if err != nil {
			return WeatherBundle{}, err
		}
		return WeatherBundle{Warnings: warnings, Upfront: upfront}, nil
	}
}

// PollenFetch returns a FetchFunc for the pollen forecast.
func PollenFetch(api PollenAPI) FetchFunc[PollenBundle] {
	return func(ctx context.Context) (PollenBundle, error) {
		all, err := api.PollenFlight(ctx)
		if err != nil {
			return PollenBundle{}, err
		}
		highest, err := api.HighestPollenFlight(ctx)
		if err != nil {
			return PollenBundle{}, err
		}
		return PollenBundle{AllPollen: all, Highest: highest}, nil
	}
}

// WasteFetch returns a FetchFunc for the waste collection schedule.
func WasteFetch(api WasteAPI) FetchFunc[WasteBundle] {
	return func(ctx context.Context) (WasteBundle, error) {
		upcoming, err := api.UpcomingWasteCollections(ctx)
		if err != nil {
			return WasteBundle{}, err
		}
		next, err := api.NextWasteCollection(ctx)
		if err != nil {
			return WasteBundle{}, err
		}
		return WasteBundle{Upcoming: upcoming, Next: next}, nil
	}
}
