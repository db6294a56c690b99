package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Fuel types understood by the cheapest-station endpoint.
var PetrolTypes = []string{"E5", "E10", "DIESEL"}

const (
	DefaultBaseURL       = "http://192.168.178.31:8080/v1"
	DefaultWarningCellID = "809177119"
	DefaultSearchRadius  = 15.0
	DefaultPetrolType    = "E5"

	DefaultPetrolInterval  = 5
	DefaultWeatherInterval = 10
	DefaultPollenInterval  = 30
	DefaultWasteInterval   = 30
)

// MQTTConfig configures Home Assistant discovery publishing. Disabled when Broker is empty.
type MQTTConfig struct {
	Broker          string
	Port            int
	User            string
	Password        string
	ClientID        string
	DiscoveryPrefix string
}

// Config is the process configuration.
type Config struct {
	// EntryID prefixes every entity unique id.
	EntryID string

	// Base holds integration settings read from the environment;
	// Options overrides them and is persisted to OptionsFile.
	Base        Settings
	Options     Options
	OptionsFile string

	APITimeout time.Duration

	// Home Assistant REST access used to resolve location entities.
	HAURL   string
	HAToken string

	GeocoderAPIKey string

	// In-memory entity history retention.
	StoreMaxHistory int           // max number of states per entity (0 = unlimited)
	StoreMaxAge     time.Duration // max age of states (0 = unlimited)

	MQTT MQTTConfig

	KafkaBrokers []string
	KafkaTopic   string

	Port            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment and the options file with sensible defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	cfg := &Config{}

	base, err := loadSettings()
	if err != nil {
		return nil, err
	}
	cfg.Base = base

	if cfg.APITimeout, err = getenvDuration("API_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	cfg.HAURL = strings.TrimRight(os.Getenv("HA_URL"), "/")
	cfg.HAToken = os.Getenv("HA_TOKEN")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.MQTT = MQTTConfig{
		Broker:          os.Getenv("MQTT_BROKER"),
		Port:            getenvInt("MQTT_PORT", 1883),
		User:            os.Getenv("MQTT_USER"),
		Password:        os.Getenv("MQTT_PASSWORD"),
		ClientID:        getenvDefault("MQTT_CLIENT_ID", "easy_homey"),
		DiscoveryPrefix: getenvDefault("MQTT_DISCOVERY_PREFIX", "homeassistant"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	cfg.KafkaTopic = getenvDefault("KAFKA_TOPIC", "easy-homey.entity-states")

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	cfg.OptionsFile = getenvDefault("OPTIONS_FILE", "easy-homey.toml")
	opts, err := LoadOptions(cfg.OptionsFile)
	if err != nil {
		return nil, err
	}
	cfg.Options = opts

	if err := cfg.resolveEntryID(); err != nil {
		return nil, err
	}

	if err := cfg.Settings().Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// Settings returns the effective integration settings: options over environment.
func (c *Config) Settings() Settings {
	return c.Options.Apply(c.Base)
}

// resolveEntryID prefers ENTRY_ID, then the persisted id, and otherwise
// generates one and writes it back so unique ids survive restarts.
func (c *Config) resolveEntryID() error {
	if id := os.Getenv("ENTRY_ID"); id != "" {
		c.EntryID = id
		return nil
	}
	if c.Options.EntryID != "" {
		c.EntryID = c.Options.EntryID
		return nil
	}
	c.EntryID = strings.ReplaceAll(uuid.NewString(), "-", "")
	c.Options.EntryID = c.EntryID
	if err := SaveOptions(c.OptionsFile, c.Options); err != nil {
		return fmt.Errorf("persist entry id: %w", err)
	}
	return nil
}

func loadSettings() (Settings, error) {
	s := Settings{
		BaseURL:                  getenvDefault("API_BASE_URL", DefaultBaseURL),
		APIKey:                   os.Getenv("API_KEY"),
		LocationEntityID:         os.Getenv("LOCATION_ENTITY_ID"),
		LocationEntityIDCheapest: os.Getenv("LOCATION_ENTITY_ID_CHEAPEST"),
		LocationEntityIDNearest:  os.Getenv("LOCATION_ENTITY_ID_NEAREST"),
		WarningCellID:            getenvDefault("WARNING_CELL_ID", DefaultWarningCellID),
		PetrolType:               strings.ToUpper(getenvDefault("PETROL_TYPE", DefaultPetrolType)),
		PetrolInterval:           getenvInt("UPDATE_INTERVAL_PETROL", DefaultPetrolInterval),
		WeatherInterval:          getenvInt("UPDATE_INTERVAL_WEATHER", DefaultWeatherInterval),
		PollenInterval:           getenvInt("UPDATE_INTERVAL_POLLEN", DefaultPollenInterval),
		WasteInterval:            getenvInt("UPDATE_INTERVAL_WASTE", DefaultWasteInterval),
	}

	radius, err := strconv.ParseFloat(getenvDefault("SEARCH_RADIUS", "15"), 64)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid SEARCH_RADIUS: %w", err)
	}
	s.SearchRadius = radius

	if ids := os.Getenv("STATION_IDS"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				s.StationIDs = append(s.StationIDs, id)
			}
		}
	}
	return s, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
