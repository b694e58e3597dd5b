package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record field names used by the SRF Meteo forecast payload.
const (
	FieldLocalDateTime   = "local_date_time"
	FieldSymbolCode      = "SYMBOL_CODE"
	FieldTemperature     = "TTT_C"
	FieldTemperatureMax  = "TX_C"
	FieldTemperatureMin  = "TN_C"
	FieldWindSpeed       = "FF_KMH"
	FieldWindGust        = "FX_KMH"
	FieldWindDirection   = "DD_DEG"
	FieldPrecipitation   = "RRR_MM"
	FieldRainProbability = "PROBPCP_PERCENT"
)

var (
	errMissingField = errors.New("missing field")
	errNotNumeric   = errors.New("not a number")
	errNotInteger   = errors.New("not an integer")
	errBadTimestamp = errors.New("not an ISO-8601 timestamp")
	errNegative     = errors.New("negative value")
)

// ParseError reports a forecast record that could not be normalized.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("forecast record field %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Kind distinguishes daily from hourly forecast records.
type Kind int

const (
	KindDaily Kind = iota
	KindHourly
)

func (k Kind) String() string {
	if k == KindHourly {
		return "hourly"
	}
	return "daily"
}

// Parser turns raw provider records into normalized values.
type Parser struct {
	symbols *SymbolMapper
}

// NewParser creates a Parser that maps symbols through symbols.
func NewParser(symbols *SymbolMapper) *Parser {
	return &Parser{symbols: symbols}
}

// Parse converts one raw record. Daily records take their high and low from
// TX_C/TN_C, hourly records take the high from TTT_C and the low from TN_C
// when the provider sends it. Either the whole record parses or a
// *ParseError is returned.
func (p *Parser) Parse(rec Record, kind Kind) (ForecastEntry, error) {
	ts, err := recordTime(rec, FieldLocalDateTime)
	if err != nil {
		return ForecastEntry{}, err
	}
	symbol, err := recordInt(rec, FieldSymbolCode)
	if err != nil {
		return ForecastEntry{}, err
	}

	var high, low float64
	switch kind {
	case KindHourly:
		if high, err = recordFloat(rec, FieldTemperature); err != nil {
			return ForecastEntry{}, err
		}
		if _, ok := rec[FieldTemperatureMin]; ok {
			if low, err = recordFloat(rec, FieldTemperatureMin); err != nil {
				return ForecastEntry{}, err
			}
		}
	default:
		if high, err = recordFloat(rec, FieldTemperatureMax); err != nil {
			return ForecastEntry{}, err
		}
		if low, err = recordFloat(rec, FieldTemperatureMin); err != nil {
			return ForecastEntry{}, err
		}
	}

	precip, err := recordNonNegative(rec, FieldPrecipitation)
	if err != nil {
		return ForecastEntry{}, err
	}
	bearing, err := recordInt(rec, FieldWindDirection)
	if err != nil {
		return ForecastEntry{}, err
	}
	wind, err := recordNonNegative(rec, FieldWindSpeed)
	if err != nil {
		return ForecastEntry{}, err
	}

	return ForecastEntry{
		Timestamp:       ts,
		TemperatureHigh: high,
		TemperatureLow:  low,
		Condition:       p.symbols.Map(symbol),
		SymbolID:        symbol,
		PrecipitationMM: precip,
		WindBearingDeg:  normalizeBearing(bearing),
		WindSpeedKMH:    wind,
	}, nil
}

// ParseCurrent derives the current conditions from the hourly record that
// matches "now". The gust field is optional.
func (p *Parser) ParseCurrent(rec Record) (Current, error) {
	ts, err := recordTime(rec, FieldLocalDateTime)
	if err != nil {
		return Current{}, err
	}
	symbol, err := recordInt(rec, FieldSymbolCode)
	if err != nil {
		return Current{}, err
	}
	temp, err := recordFloat(rec, FieldTemperature)
	if err != nil {
		return Current{}, err
	}
	wind, err := recordNonNegative(rec, FieldWindSpeed)
	if err != nil {
		return Current{}, err
	}
	var gust float64
	if _, ok := rec[FieldWindGust]; ok {
		if gust, err = recordNonNegative(rec, FieldWindGust); err != nil {
			return Current{}, err
		}
	}
	bearing, err := recordFloat(rec, FieldWindDirection)
	if err != nil {
		return Current{}, err
	}
	precip, err := recordNonNegative(rec, FieldPrecipitation)
	if err != nil {
		return Current{}, err
	}
	rain, err := recordNonNegative(rec, FieldRainProbability)
	if err != nil {
		return Current{}, err
	}

	return Current{
		Timestamp:       ts,
		Condition:       p.symbols.Map(symbol),
		SymbolID:        symbol,
		Temperature:     temp,
		WindSpeedKMH:    wind,
		WindGustKMH:     gust,
		WindBearingDeg:  bearing,
		WindBearing:     ToCardinal(bearing),
		PrecipitationMM: precip,
		RainProbability: rain,
	}, nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 timestamps and the offset-less ISO-8601
// forms, which are interpreted in local time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errBadTimestamp
}

func recordTime(rec Record, field string) (time.Time, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return time.Time{}, &ParseError{Field: field, Err: errMissingField}
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, &ParseError{Field: field, Err: errBadTimestamp}
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, &ParseError{Field: field, Err: err}
	}
	return ts, nil
}

func recordFloat(rec Record, field string) (float64, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		return 0, &ParseError{Field: field, Err: errMissingField}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, &ParseError{Field: field, Err: err}
	}
	return f, nil
}

func recordNonNegative(rec Record, field string) (float64, error) {
	f, err := recordFloat(rec, field)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, &ParseError{Field: field, Err: errNegative}
	}
	return f, nil
}

func recordInt(rec Record, field string) (int, error) {
	f, err := recordFloat(rec, field)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, &ParseError{Field: field, Err: errNotInteger}
	}
	return int(f), nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, errNotNumeric
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errNotNumeric
		}
		f = parsed
	default:
		return 0, errNotNumeric
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return f, nil
}
