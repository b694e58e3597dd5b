package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/srf-weather/internal/weather"
)

// geocode is swapped out in tests to keep them offline.
var geocode = func(apiKey, city, country string) (float64, float64, error) {
	geocoder.ApiKey = apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}

// ResolveLocation returns the configured coordinates, geocoding the city when
// none are set.
func (c *AppConfig) ResolveLocation() (weather.Location, error) {
	if c.Latitude != "" {
		lat, err := strconv.ParseFloat(c.Latitude, 64)
		if err != nil {
			return weather.Location{}, fmt.Errorf("invalid WEATHER_LATITUDE: %w", err)
		}
		lon, err := strconv.ParseFloat(c.Longitude, 64)
		if err != nil {
			return weather.Location{}, fmt.Errorf("invalid WEATHER_LONGITUDE: %w", err)
		}
		return weather.Location{Name: c.Name, Latitude: lat, Longitude: lon}, nil
	}

	if c.GeocoderAPIKey == "" {
		return weather.Location{}, errors.New("GEOCODER_API_KEY is required to look up WEATHER_LOCATION_CITY")
	}
	lat, lon, err := geocode(c.GeocoderAPIKey, c.City, c.Country)
	if err != nil {
		return weather.Location{}, fmt.Errorf("geocode %s, %s: %w", c.City, c.Country, err)
	}
	return weather.Location{Name: c.Name, Latitude: lat, Longitude: lon}, nil
}
