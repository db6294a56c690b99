package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// UserLocation is a named location whose nearest station gets its own sensor.
type UserLocation struct {
	Name     string `toml:"name" json:"name" validate:"required"`
	EntityID string `toml:"entity_id" json:"entity_id" validate:"required"`
}

// Settings is the integration configuration snapshot. It is immutable while
// the integration runs; changing it means a reload.
type Settings struct {
	BaseURL string `validate:"required,url"`
	APIKey  string

	// LocationEntityID is the legacy single location used when the
	// cheapest/nearest specific ones are unset.
	LocationEntityID         string
	LocationEntityIDCheapest string
	LocationEntityIDNearest  string

	UserLocations []UserLocation `validate:"dive"`
	StationIDs    []string       `validate:"dive,required"`

	WarningCellID string  `validate:"required"`
	SearchRadius  float64 `validate:"gte=0.1,lte=25"`
	PetrolType    string  `validate:"oneof=E5 E10 DIESEL"`

	// Poll intervals in minutes.
	PetrolInterval  int `validate:"gte=1,lte=1440"`
	WeatherInterval int `validate:"gte=1,lte=1440"`
	PollenInterval  int `validate:"gte=1,lte=1440"`
	WasteInterval   int `validate:"gte=1,lte=1440"`
}

// Validate checks field ranges.
func (s Settings) Validate() error {
	return validate.Struct(s)
}

// CheapestLocation is the location reference used for cheapest-station lookups.
func (s Settings) CheapestLocation() string {
	if s.LocationEntityIDCheapest != "" {
		return s.LocationEntityIDCheapest
	}
	return s.LocationEntityID
}

// NearestLocation is the location reference used for the nearest-station search.
func (s Settings) NearestLocation() string {
	if s.LocationEntityIDNearest != "" {
		return s.LocationEntityIDNearest
	}
	return s.LocationEntityID
}

func (s Settings) PetrolEvery() time.Duration  { return minutes(s.PetrolInterval) }
func (s Settings) WeatherEvery() time.Duration { return minutes(s.WeatherInterval) }
func (s Settings) PollenEvery() time.Duration  { return minutes(s.PollenInterval) }
func (s Settings) WasteEvery() time.Duration   { return minutes(s.WasteInterval) }

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
