// Package setup validates integration settings and applies option changes.
package setup

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/homey"
	"github.com/i474232898/easy-homey/internal/location"
)

// Form error codes.
const (
	CodeCannotConnect    = "cannot_connect"
	CodeTimeout          = "timeout"
	CodeInvalidEntity    = "invalid_entity"
	CodeUnknown          = "unknown"
	CodeInvalidStationID = "invalid_station_id"
	CodeStationIDExists  = "station_id_exists"
	CodeLocationExists   = "location_exists"
	CodeInvalidValue     = "invalid_value"
)

// FieldBase carries errors not tied to a single field.
const FieldBase = "base"

// Errors maps form fields to error codes. An empty map means the input is valid.
type Errors map[string]string

// Client is the part of the API client used during setup.
type Client interface {
	TestConnection(ctx context.Context) error
	PetrolStation(ctx context.Context, stationID string) (*homey.Station, error)
}

// ClientFactory builds a client for the given settings.
type ClientFactory func(config.Settings) Client

var fieldNames = map[string]string{
	"BaseURL":         "base_url",
	"APIKey":          "api_key",
	"WarningCellID":   "warning_cell_id",
	"SearchRadius":    "search_radius",
	"PetrolType":      "petrol_type",
	"PetrolInterval":  "petrol_update_interval",
	"WeatherInterval": "weather_update_interval",
	"PollenInterval":  "pollen_update_interval",
	"WasteInterval":   "waste_update_interval",
	"UserLocations":   "user_locations",
	"StationIDs":      "station_ids",
	"Name":            "name",
	"EntityID":        "entity_id",
}

// ValidateInput checks settings the way the setup form does: field ranges
// first, then API reachability, then every configured location reference.
func ValidateInput(ctx context.Context, client Client, resolver location.Resolver, s config.Settings, logger *slog.Logger) Errors {
	if logger == nil {
		logger = slog.Default()
	}
	errs := Errors{}

	if err := s.Validate(); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			errs[FieldBase] = CodeUnknown
			return errs
		}
		for _, fe := range ve {
			name, ok := fieldNames[fe.Field()]
			if !ok {
				name = fe.Field()
			}
			errs[name] = CodeInvalidValue
		}
		return errs
	}

	if err := client.TestConnection(ctx); err != nil {
		errs[FieldBase] = connectionCode(err)
		logger.Warn("api connection test failed", "error", err)
		return errs
	}

	refs := []struct{ field, ref string }{
		{"location_entity_id", s.LocationEntityID},
		{"location_entity_id_cheapest", s.LocationEntityIDCheapest},
		{"location_entity_id_nearest", s.LocationEntityIDNearest},
	}
	for _, r := range refs {
		if r.ref == "" {
			continue
		}
		if _, err := resolver.Resolve(ctx, r.ref); err != nil {
			logger.Warn("location reference did not resolve", "field", r.field, "ref", r.ref, "error", err)
			errs[r.field] = CodeInvalidEntity
		}
	}
	return errs
}

// connectionCode maps a client error to a form error code.
func connectionCode(err error) string {
	var (
		te *homey.TimeoutError
		ce *homey.ConnectionError
		ae *homey.APIError
	)
	switch {
	case errors.As(err, &te):
		return CodeTimeout
	case errors.As(err, &ce), errors.As(err, &ae):
		return CodeCannotConnect
	default:
		return CodeUnknown
	}
}

// unreachable reports whether err means the API could not be asked at all.
func unreachable(err error) bool {
	var (
		te *homey.TimeoutError
		ce *homey.ConnectionError
	)
	return errors.As(err, &te) || errors.As(err, &ce)
}
