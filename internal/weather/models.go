package weather

import (
	"strconv"
	"time"
)

// Attribution is the credit line the SRF Meteo terms require next to the data.
const Attribution = "SRF Schweizer Radio und Fernsehen"

// TemperatureUnit is the unit of every temperature in this package.
const TemperatureUnit = "°C"

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnavailable    Condition = "unavailable"
	ConditionSunny          Condition = "sunny"
	ConditionClearNight     Condition = "clear-night"
	ConditionPartlyCloudy   Condition = "partlycloudy"
	ConditionCloudy         Condition = "cloudy"
	ConditionFog            Condition = "fog"
	ConditionRainy          Condition = "rainy"
	ConditionPouring        Condition = "pouring"
	ConditionLightning      Condition = "lightning"
	ConditionLightningRainy Condition = "lightning-rainy"
	ConditionSnowy          Condition = "snowy"
	ConditionSnowyRainy     Condition = "snowy-rainy"
)

// Location is the single place a weather entity tracks.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ID returns the stable unique identifier of the location, "<lat>-<lon>".
func (l Location) ID() string {
	return formatCoord(l.Latitude) + "-" + formatCoord(l.Longitude)
}

// GeolocationID returns the identifier the forecast endpoint expects, "<lat>,<lon>".
func (l Location) GeolocationID() string {
	return formatCoord(l.Latitude) + "," + formatCoord(l.Longitude)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ForecastEntry is one normalized daily or hourly forecast record.
type ForecastEntry struct {
	Timestamp       time.Time `json:"datetime"`
	TemperatureHigh float64   `json:"temperature"`
	TemperatureLow  float64   `json:"templow"`
	Condition       Condition `json:"condition"`
	SymbolID        int       `json:"symbol_id"`
	PrecipitationMM float64   `json:"precipitation"`
	WindBearingDeg  int       `json:"wind_bearing"`
	WindSpeedKMH    float64   `json:"wind_speed"`
}

// Current holds the conditions derived from the hourly record matching "now".
type Current struct {
	Timestamp       time.Time `json:"timestamp"`
	Condition       Condition `json:"condition"`
	SymbolID        int       `json:"symbol_id"`
	Temperature     float64   `json:"temperature"`
	WindSpeedKMH    float64   `json:"wind_speed"`
	WindGustKMH     float64   `json:"wind_gust,omitempty"`
	WindBearingDeg  float64   `json:"wind_direction"`
	WindBearing     string    `json:"wind_bearing"`
	PrecipitationMM float64   `json:"precipitation"`
	RainProbability float64   `json:"rain_probability"`
}

// Snapshot is the complete published weather view. It is replaced wholesale
// after every successful update cycle and never merged.
type Snapshot struct {
	Location  Location        `json:"location"`
	FetchedAt time.Time       `json:"fetched_at"` // always UTC
	Current   Current         `json:"current"`
	Daily     []ForecastEntry `json:"daily"`
	Hourly    []ForecastEntry `json:"hourly"`
}

// Record is one raw forecast record as decoded from the provider payload.
// Numeric values are json.Number, float64 or numeric strings.
type Record map[string]any

// ForecastResponse is the provider payload of the forecast endpoint.
type ForecastResponse struct {
	Forecast struct {
		Hourly []Record `json:"60minutes"`
		Daily  []Record `json:"day"`
	} `json:"forecast"`
}
