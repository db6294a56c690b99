package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPTIONS_FILE", filepath.Join(t.TempDir(), "options.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, DefaultBaseURL, s.BaseURL)
	assert.Equal(t, DefaultWarningCellID, s.WarningCellID)
	assert.InDelta(t, 15.0, s.SearchRadius, 1e-9)
	assert.Equal(t, "E5", s.PetrolType)
	assert.Equal(t, 5*time.Minute, s.PetrolEvery())
	assert.Equal(t, 10*time.Minute, s.WeatherEvery())
	assert.Equal(t, 30*time.Minute, s.PollenEvery())
	assert.Equal(t, 30*time.Minute, s.WasteEvery())
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_EntryIDPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	t.Setenv("OPTIONS_FILE", path)

	first, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, first.EntryID)

	second, err := Load()
	require.NoError(t, err)
	assert.Equal(t, first.EntryID, second.EntryID)
}

func TestLoad_EnvEntryIDWins(t *testing.T) {
	t.Setenv("OPTIONS_FILE", filepath.Join(t.TempDir(), "options.toml"))
	t.Setenv("ENTRY_ID", "abc123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.EntryID)
}

func TestLoad_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"radius too small", "SEARCH_RADIUS", "0.05"},
		{"radius too large", "SEARCH_RADIUS", "26"},
		{"interval zero", "UPDATE_INTERVAL_PETROL", "0"},
		{"interval too large", "UPDATE_INTERVAL_WASTE", "1441"},
		{"unknown petrol type", "PETROL_TYPE", "LPG"},
		{"bad url", "API_BASE_URL", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPTIONS_FILE", filepath.Join(t.TempDir(), "options.toml"))
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_StationIDsFromEnv(t *testing.T) {
	t.Setenv("OPTIONS_FILE", filepath.Join(t.TempDir(), "options.toml"))
	t.Setenv("STATION_IDS", "abc-1, def-2,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"abc-1", "def-2"}, cfg.Settings().StationIDs)
}

func TestSettings_LocationFallback(t *testing.T) {
	s := Settings{LocationEntityID: "zone.home"}
	assert.Equal(t, "zone.home", s.CheapestLocation())
	assert.Equal(t, "zone.home", s.NearestLocation())

	s.LocationEntityIDCheapest = "person.anna"
	s.LocationEntityIDNearest = "device_tracker.car"
	assert.Equal(t, "person.anna", s.CheapestLocation())
	assert.Equal(t, "device_tracker.car", s.NearestLocation())
}

func TestOptions_RoundTripAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "options.toml")
	opts := Options{
		SearchRadius:  5,
		PetrolType:    "DIESEL",
		UserLocations: []UserLocation{{Name: "Work", EntityID: "zone.work"}},
		StationIDs:    []string{"a-b-c"},
	}
	require.NoError(t, SaveOptions(path, opts))

	loaded, err := LoadOptions(path)
	require.NoError(t, err)

	base := Settings{BaseURL: DefaultBaseURL, SearchRadius: 15, PetrolType: "E5", PetrolInterval: 5}
	s := loaded.Apply(base)
	assert.InDelta(t, 5.0, s.SearchRadius, 1e-9)
	assert.Equal(t, "DIESEL", s.PetrolType)
	assert.Equal(t, 5, s.PetrolInterval)
	assert.Equal(t, DefaultBaseURL, s.BaseURL)
	assert.Equal(t, []UserLocation{{Name: "Work", EntityID: "zone.work"}}, s.UserLocations)
	assert.Equal(t, []string{"a-b-c"}, s.StationIDs)
}

func TestLoadOptions_MissingFile(t *testing.T) {
	opts, err := LoadOptions(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Options{}, opts)
}
