package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(NewSymbolMapper(zerolog.New(&bytes.Buffer{})))
}

func dailyRecord() Record {
	return Record{
		"local_date_time": "2024-03-14T00:00:00+01:00",
		"SYMBOL_CODE":     json.Number("3"),
		"TX_C":            json.Number("12.5"),
		"TN_C":            json.Number("-1.2"),
		"RRR_MM":          json.Number("0.4"),
		"DD_DEG":          json.Number("225"),
		"FF_KMH":          json.Number("14"),
	}
}

func TestParse_DailyRecord(t *testing.T) {
	entry, err := newTestParser().Parse(dailyRecord(), KindDaily)
	require.NoError(t, err)

	assert.Equal(t, 12.5, entry.TemperatureHigh)
	assert.Equal(t, -1.2, entry.TemperatureLow)
	assert.Equal(t, ConditionPartlyCloudy, entry.Condition)
	assert.Equal(t, 3, entry.SymbolID)
	assert.Equal(t, 0.4, entry.PrecipitationMM)
	assert.Equal(t, 225, entry.WindBearingDeg)
	assert.Equal(t, 14.0, entry.WindSpeedKMH)

	want := time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC)
	assert.True(t, entry.Timestamp.Equal(want), "timestamp %v", entry.Timestamp)
}

func TestParse_AcceptsNumericStringsAndFloats(t *testing.T) {
	rec := dailyRecord()
	rec["TX_C"] = "9"
	rec["SYMBOL_CODE"] = float64(-1)
	rec["DD_DEG"] = "360"

	entry, err := newTestParser().Parse(rec, KindDaily)
	require.NoError(t, err)
	assert.Equal(t, 9.0, entry.TemperatureHigh)
	assert.Equal(t, ConditionClearNight, entry.Condition)
	assert.Equal(t, 0, entry.WindBearingDeg)
}

func TestParse_HourlyRecordUsesCurrentTemperature(t *testing.T) {
	rec := Record{
		"local_date_time": "2024-03-14T13:00:00+01:00",
		"SYMBOL_CODE":     json.Number("1"),
		"TTT_C":           json.Number("8.1"),
		"RRR_MM":          json.Number("0"),
		"DD_DEG":          json.Number("90"),
		"FF_KMH":          json.Number("5"),
	}
	entry, err := newTestParser().Parse(rec, KindHourly)
	require.NoError(t, err)
	assert.Equal(t, 8.1, entry.TemperatureHigh)
	assert.Equal(t, 0.0, entry.TemperatureLow)
}

func TestParse_RejectsBadRecords(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(Record)
		field string
		err   error
	}{
		{"missing symbol", func(r Record) { delete(r, "SYMBOL_CODE") }, "SYMBOL_CODE", errMissingField},
		{"non numeric high", func(r Record) { r["TX_C"] = "warm" }, "TX_C", errNotNumeric},
		{"fractional symbol", func(r Record) { r["SYMBOL_CODE"] = json.Number("1.5") }, "SYMBOL_CODE", errNotInteger},
		{"bad timestamp", func(r Record) { r["local_date_time"] = "yesterday" }, "local_date_time", errBadTimestamp},
		{"null low", func(r Record) { r["TN_C"] = nil }, "TN_C", errMissingField},
		{"negative wind", func(r Record) { r["FF_KMH"] = json.Number("-3") }, "FF_KMH", errNegative},
		{"bool precipitation", func(r Record) { r["RRR_MM"] = true }, "RRR_MM", errNotNumeric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := dailyRecord()
			tc.edit(rec)

			entry, err := newTestParser().Parse(rec, KindDaily)
			require.Error(t, err)
			assert.Equal(t, ForecastEntry{}, entry)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tc.field, perr.Field)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestParseCurrent(t *testing.T) {
	rec := Record{
		"local_date_time": "2024-03-14T13:00:00+01:00",
		"SYMBOL_CODE":     json.Number("-4"),
		"TTT_C":           json.Number("6.5"),
		"FF_KMH":          json.Number("11"),
		"FX_KMH":          json.Number("30"),
		"DD_DEG":          json.Number("200"),
		"RRR_MM":          json.Number("1.2"),
		"PROBPCP_PERCENT": json.Number("70"),
	}
	cur, err := newTestParser().ParseCurrent(rec)
	require.NoError(t, err)

	assert.Equal(t, ConditionRainy, cur.Condition)
	assert.Equal(t, -4, cur.SymbolID)
	assert.Equal(t, 6.5, cur.Temperature)
	assert.Equal(t, 11.0, cur.WindSpeedKMH)
	assert.Equal(t, 30.0, cur.WindGustKMH)
	assert.Equal(t, 200.0, cur.WindBearingDeg)
	assert.Equal(t, "SSW", cur.WindBearing)
	assert.Equal(t, 1.2, cur.PrecipitationMM)
	assert.Equal(t, 70.0, cur.RainProbability)

	delete(rec, "PROBPCP_PERCENT")
	_, err = newTestParser().ParseCurrent(rec)
	assert.ErrorIs(t, err, errMissingField)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	for _, s := range []string{
		"2024-03-14T13:00:00+01:00",
		"2024-03-14T13:00:00Z",
		"2024-03-14T13:00:00",
		"2024-03-14T13:00",
		"2024-03-14",
	} {
		_, err := ParseTimestamp(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseTimestamp("14.03.2024")
	assert.ErrorIs(t, err, errBadTimestamp)
}
