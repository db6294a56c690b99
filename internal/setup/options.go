package setup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/location"
)

// General is the general settings form. Every field replaces the current value.
type General struct {
	BaseURL                  string  `json:"base_url"`
	APIKey                   string  `json:"api_key"`
	LocationEntityID         string  `json:"location_entity_id"`
	LocationEntityIDCheapest string  `json:"location_entity_id_cheapest"`
	LocationEntityIDNearest  string  `json:"location_entity_id_nearest"`
	WarningCellID            string  `json:"warning_cell_id"`
	SearchRadius             float64 `json:"search_radius"`
	PetrolType               string  `json:"petrol_type"`
	PetrolInterval           int     `json:"petrol_update_interval"`
	WeatherInterval          int     `json:"weather_update_interval"`
	PollenInterval           int     `json:"pollen_update_interval"`
	WasteInterval            int     `json:"waste_update_interval"`
}

// ReloadFunc applies new settings to the running integration.
type ReloadFunc func(ctx context.Context, s config.Settings) error

// Flow applies option changes. Each accepted change is persisted to the
// options file and followed by a reload.
type Flow struct {
	mu sync.Mutex

	path      string
	base      config.Settings
	opts      config.Options
	newClient ClientFactory
	resolver  location.Resolver
	reload    ReloadFunc
	logger    *slog.Logger
}

// NewFlow creates an options flow over cfg's settings.
func NewFlow(cfg *config.Config, newClient ClientFactory, resolver location.Resolver, reload ReloadFunc, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		path:      cfg.OptionsFile,
		base:      cfg.Base,
		opts:      cfg.Options,
		newClient: newClient,
		resolver:  resolver,
		reload:    reload,
		logger:    logger.With("component", "options"),
	}
}

// Settings returns the effective settings.
func (f *Flow) Settings() config.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts.Apply(f.base)
}

// Validate runs the setup validation against s without changing anything.
func (f *Flow) Validate(ctx context.Context, s config.Settings) Errors {
	return ValidateInput(ctx, f.newClient(s), f.resolver, s, f.logger)
}

// ValidateGeneral runs the setup validation on g applied over the current options.
func (f *Flow) ValidateGeneral(ctx context.Context, g General) Errors {
	f.mu.Lock()
	s := f.withGeneral(g).Apply(f.base)
	f.mu.Unlock()
	return f.Validate(ctx, s)
}

// UpdateGeneral replaces the general settings after validating them.
func (f *Flow) UpdateGeneral(ctx context.Context, g General) (Errors, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.withGeneral(g)
	s := next.Apply(f.base)
	if errs := ValidateInput(ctx, f.newClient(s), f.resolver, s, f.logger); len(errs) > 0 {
		return errs, nil
	}
	return nil, f.commit(ctx, next)
}

// withGeneral must be called with mu held.
func (f *Flow) withGeneral(g General) config.Options {
	next := f.opts
	next.BaseURL = strings.TrimSpace(g.BaseURL)
	next.APIKey = g.APIKey
	next.LocationEntityID = g.LocationEntityID
	next.LocationEntityIDCheapest = g.LocationEntityIDCheapest
	next.LocationEntityIDNearest = g.LocationEntityIDNearest
	next.WarningCellID = g.WarningCellID
	next.SearchRadius = g.SearchRadius
	next.PetrolType = g.PetrolType
	next.PetrolInterval = g.PetrolInterval
	next.WeatherInterval = g.WeatherInterval
	next.PollenInterval = g.PollenInterval
	next.WasteInterval = g.WasteInterval
	return next
}

// AddUserLocation adds a named location whose reference must resolve.
func (f *Flow) AddUserLocation(ctx context.Context, ul config.UserLocation) (Errors, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ul.Name = strings.TrimSpace(ul.Name)
	ul.EntityID = strings.TrimSpace(ul.EntityID)
	if ul.Name == "" {
		return Errors{"name": CodeInvalidValue}, nil
	}

	current := f.opts.Apply(f.base).UserLocations
	for _, existing := range current {
		if existing.Name == ul.Name {
			return Errors{"name": CodeLocationExists}, nil
		}
	}
	if _, err := f.resolver.Resolve(ctx, ul.EntityID); err != nil {
		f.logger.Warn("user location did not resolve", "name", ul.Name, "ref", ul.EntityID, "error", err)
		return Errors{"entity_id": CodeInvalidEntity}, nil
	}

	next := f.opts
	next.UserLocations = append(slices.Clone(current), ul)
	return nil, f.commit(ctx, next)
}

// RemoveUserLocation removes the named location. Unknown names are ignored.
func (f *Flow) RemoveUserLocation(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.opts.Apply(f.base).UserLocations
	kept := slices.DeleteFunc(slices.Clone(current), func(ul config.UserLocation) bool { return ul.Name == name })
	if len(kept) == len(current) {
		return nil
	}

	next := f.opts
	next.UserLocations = kept
	return f.commit(ctx, next)
}

// AddStationID tracks a station. The id is checked against the API; when
// the API cannot be reached the id is added unchecked.
func (f *Flow) AddStationID(ctx context.Context, id string) (Errors, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return Errors{"station_id": CodeInvalidStationID}, nil
	}

	s := f.opts.Apply(f.base)
	if slices.Contains(s.StationIDs, id) {
		return Errors{"station_id": CodeStationIDExists}, nil
	}

	st, err := f.newClient(s).PetrolStation(ctx, id)
	switch {
	case err != nil && unreachable(err):
		f.logger.Warn("could not verify station id, adding anyway", "station_id", id, "error", err)
	case err != nil || st == nil:
		f.logger.Warn("station id rejected", "station_id", id, "error", err)
		return Errors{"station_id": CodeInvalidStationID}, nil
	}

	next := f.opts
	next.StationIDs = append(slices.Clone(s.StationIDs), id)
	return nil, f.commit(ctx, next)
}

// RemoveStationID stops tracking a station. Unknown ids are ignored.
func (f *Flow) RemoveStationID(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current := f.opts.Apply(f.base).StationIDs
	idx := slices.Index(current, id)
	if idx < 0 {
		return nil
	}

	next := f.opts
	next.StationIDs = slices.Delete(slices.Clone(current), idx, idx+1)
	return f.commit(ctx, next)
}

// commit must be called with mu held.
func (f *Flow) commit(ctx context.Context, next config.Options) error {
	if err := config.SaveOptions(f.path, next); err != nil {
		return err
	}
	f.opts = next
	f.logger.Info("options saved", "path", f.path)

	if f.reload == nil {
		return nil
	}
	if err := f.reload(ctx, next.Apply(f.base)); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}
