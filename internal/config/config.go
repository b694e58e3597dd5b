package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type AppConfig struct {
	ConsumerKey    string `validate:"required"`
	ConsumerSecret string `validate:"required"`
	APIURL         string `validate:"required,url"`

	// Coordinates win over the city; the city is geocoded only without them.
	Latitude       string `validate:"required_without=City,omitempty,latitude"`
	Longitude      string `validate:"required_with=Latitude,omitempty,longitude"`
	City           string
	Country        string `validate:"required_with=City"`
	GeocoderAPIKey string

	Name string

	// Update cycles are spaced by a delay drawn from [UpdateIntervalMin, UpdateIntervalMax).
	UpdateIntervalMin time.Duration `validate:"gt=0"`
	UpdateIntervalMax time.Duration `validate:"gtfield=UpdateIntervalMin"`

	HTTPTimeout           time.Duration `validate:"gt=0"`
	ForecastRatePerMinute int           `validate:"gte=0"`
	ForecastMaxRetries    int           `validate:"gte=0"`

	// CredentialsFile persists the access token; empty keeps it in memory.
	CredentialsFile string

	StoreDriver        string `validate:"oneof=memory sqlite"`
	SQLitePath         string `validate:"required_if=StoreDriver sqlite"`
	StoreMaxHistory    int    // max number of snapshots per location (0 = unlimited)
	StoreMaxAge        time.Duration
	StorePruneInterval time.Duration

	MQTTBroker      string
	MQTTPort        int `validate:"gt=0,lte=65535"`
	MQTTClientID    string
	MQTTTopicPrefix string

	Port     string `validate:"required,numeric"`
	Env      string
	LogLevel string
}

var validate = validator.New()

// Load reads configuration from .env and the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("no .env file loaded")
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the current environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		ConsumerKey:    os.Getenv("SRF_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("SRF_CONSUMER_SECRET"),
		APIURL:         getenvDefault("SRF_API_URL", "https://api.srgssr.ch"),

		Latitude:       os.Getenv("WEATHER_LATITUDE"),
		Longitude:      os.Getenv("WEATHER_LONGITUDE"),
		City:           os.Getenv("WEATHER_LOCATION_CITY"),
		Country:        os.Getenv("WEATHER_LOCATION_COUNTRY"),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),

		CredentialsFile: os.Getenv("CREDENTIALS_FILE"),
		StoreDriver:     getenvDefault("STORE_DRIVER", StoreMemory),
		SQLitePath:      getenvDefault("SQLITE_PATH", "data/srf-weather.db"),

		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    getenvDefault("MQTT_CLIENT_ID", "srf-weather"),
		MQTTTopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "srf-weather"),

		Port:     getenvDefault("PORT", "8080"),
		Env:      getenvDefault("ENV", "development"),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),
	}

	cfg.Name = getenvDefault("WEATHER_NAME", cfg.City)
	if cfg.Name == "" {
		cfg.Name = "SRF Weather"
	}

	var err error
	if cfg.UpdateIntervalMin, err = getenvDuration("UPDATE_INTERVAL_MIN", 55*time.Minute); err != nil {
		return nil, err
	}
	if cfg.UpdateIntervalMax, err = getenvDuration("UPDATE_INTERVAL_MAX", 65*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.StorePruneInterval, err = getenvDuration("STORE_PRUNE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	cfg.ForecastRatePerMinute = getenvInt("FORECAST_RATE_PER_MINUTE", 6)
	cfg.ForecastMaxRetries = getenvInt("FORECAST_MAX_RETRIES", 2)
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // four days at hourly updates
	cfg.MQTTPort = getenvInt("MQTT_PORT", 1883)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MQTTEnabled reports whether a broker is configured.
func (c *AppConfig) MQTTEnabled() bool {
	return c.MQTTBroker != ""
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

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
