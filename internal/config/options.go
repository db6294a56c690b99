package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	toml "github.com/pelletier/go-toml/v2"
)

// Options are the user-edited settings persisted in the options file.
// Zero values mean "not set" and fall back to the environment.
type Options struct {
	EntryID string `toml:"entry_id,omitempty"`

	BaseURL                  string  `toml:"base_url,omitempty"`
	APIKey                   string  `toml:"api_key,omitempty"`
	LocationEntityID         string  `toml:"location_entity_id,omitempty"`
	LocationEntityIDCheapest string  `toml:"location_entity_id_cheapest,omitempty"`
	LocationEntityIDNearest  string  `toml:"location_entity_id_nearest,omitempty"`
	WarningCellID            string  `toml:"warning_cell_id,omitempty"`
	SearchRadius             float64 `toml:"search_radius,omitempty"`
	PetrolType               string  `toml:"petrol_type,omitempty"`

	PetrolInterval  int `toml:"petrol_update_interval,omitempty"`
	WeatherInterval int `toml:"weather_update_interval,omitempty"`
	PollenInterval  int `toml:"pollen_update_interval,omitempty"`
	WasteInterval   int `toml:"waste_update_interval,omitempty"`

	UserLocations []UserLocation `toml:"user_locations,omitempty"`
	StationIDs    []string       `toml:"station_ids,omitempty"`
}

// Apply overlays the set options on base.
func (o Options) Apply(base Settings) Settings {
	s := base
	setString(&s.BaseURL, o.BaseURL)
	setString(&s.APIKey, o.APIKey)
	setString(&s.LocationEntityID, o.LocationEntityID)
	setString(&s.LocationEntityIDCheapest, o.LocationEntityIDCheapest)
	setString(&s.LocationEntityIDNearest, o.LocationEntityIDNearest)
	setString(&s.WarningCellID, o.WarningCellID)
	setString(&s.PetrolType, o.PetrolType)
	if o.SearchRadius != 0 {
		s.SearchRadius = o.SearchRadius
	}
	setInt(&s.PetrolInterval, o.PetrolInterval)
	setInt(&s.WeatherInterval, o.WeatherInterval)
	setInt(&s.PollenInterval, o.PollenInterval)
	setInt(&s.WasteInterval, o.WasteInterval)
	if o.UserLocations != nil {
		s.UserLocations = slices.Clone(o.UserLocations)
	}
	if o.StationIDs != nil {
		s.StationIDs = slices.Clone(o.StationIDs)
	}
	return s
}

// LoadOptions reads the options file. A missing file yields empty options.
func LoadOptions(path string) (Options, error) {
	var opts Options
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return opts, nil
		}
		return opts, fmt.Errorf("read options: %w", err)
	}
	if err := toml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options: %w", err)
	}
	return opts, nil
}

// SaveOptions writes the options file atomically.
func SaveOptions(path string, opts Options) error {
	data, err := toml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create options dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".options-*.toml")
	if err != nil {
		return fmt.Errorf("write options: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write options: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write options: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write options: %w", err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
