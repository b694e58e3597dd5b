package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SRF_CONSUMER_KEY", "key")
	t.Setenv("SRF_CONSUMER_SECRET", "secret")
	t.Setenv("WEATHER_LATITUDE", "46.948")
	t.Setenv("WEATHER_LONGITUDE", "7.4474")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://api.srgssr.ch", cfg.APIURL)
	assert.Equal(t, 55*time.Minute, cfg.UpdateIntervalMin)
	assert.Equal(t, 65*time.Minute, cfg.UpdateIntervalMax)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 6, cfg.ForecastRatePerMinute)
	assert.Equal(t, 2, cfg.ForecastMaxRetries)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 96, cfg.StoreMaxHistory)
	assert.Equal(t, 72*time.Hour, cfg.StoreMaxAge)
	assert.Equal(t, 1883, cfg.MQTTPort)
	assert.False(t, cfg.MQTTEnabled())
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "SRF Weather", cfg.Name)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret":       {"SRF_CONSUMER_SECRET": ""},
		"latitude range":       {"WEATHER_LATITUDE": "123"},
		"missing longitude":    {"WEATHER_LONGITUDE": ""},
		"inverted interval":    {"UPDATE_INTERVAL_MIN": "2h", "UPDATE_INTERVAL_MAX": "1h"},
		"bad duration":         {"HTTP_TIMEOUT": "soon"},
		"unknown store":        {"STORE_DRIVER": "redis"},
		"no location at all":   {"WEATHER_LATITUDE": "", "WEATHER_LONGITUDE": ""},
		"city without country": {"WEATHER_LATITUDE": "", "WEATHER_LONGITUDE": "", "WEATHER_LOCATION_CITY": "Bern"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestResolveLocation_Coordinates(t *testing.T) {
	setRequired(t)
	t.Setenv("WEATHER_NAME", "Home")

	cfg, err := FromEnv()
	require.NoError(t, err)

	loc, err := cfg.ResolveLocation()
	require.NoError(t, err)
	assert.Equal(t, "Home", loc.Name)
	assert.Equal(t, 46.948, loc.Latitude)
	assert.Equal(t, 7.4474, loc.Longitude)
}

func TestResolveLocation_GeocodesCity(t *testing.T) {
	setRequired(t)
	t.Setenv("WEATHER_LATITUDE", "")
	t.Setenv("WEATHER_LONGITUDE", "")
	t.Setenv("WEATHER_LOCATION_CITY", "Lugano")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "CH")
	t.Setenv("GEOCODER_API_KEY", "geo-key")

	orig := geocode
	t.Cleanup(func() { geocode = orig })
	geocode = func(apiKey, city, country string) (float64, float64, error) {
		assert.Equal(t, "geo-key", apiKey)
		assert.Equal(t, "Lugano", city)
		assert.Equal(t, "CH", country)
		return 46.0037, 8.9511, nil
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Lugano", cfg.Name)

	loc, err := cfg.ResolveLocation()
	require.NoError(t, err)
	assert.Equal(t, 46.0037, loc.Latitude)
	assert.Equal(t, "46.0037-8.9511", loc.ID())
}

func TestResolveLocation_GeocodeFailures(t *testing.T) {
	setRequired(t)
	t.Setenv("WEATHER_LATITUDE", "")
	t.Setenv("WEATHER_LONGITUDE", "")
	t.Setenv("WEATHER_LOCATION_CITY", "Nowhere")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "CH")

	cfg, err := FromEnv()
	require.NoError(t, err)

	_, err = cfg.ResolveLocation()
	assert.ErrorContains(t, err, "GEOCODER_API_KEY")

	orig := geocode
	t.Cleanup(func() { geocode = orig })
	geocode = func(string, string, string) (float64, float64, error) {
		return 0, 0, errors.New("zero results")
	}
	cfg.GeocoderAPIKey = "geo-key"
	_, err = cfg.ResolveLocation()
	assert.ErrorContains(t, err, "zero results")
}
