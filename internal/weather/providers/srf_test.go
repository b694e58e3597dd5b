package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/srf-weather/internal/weather"
)

var luzern = weather.Location{Name: "Luzern", Latitude: 47.0274, Longitude: 8.302}

const okPayload = `{"forecast":{
	"60minutes":[{"local_date_time":"2024-03-14T13:00:00+01:00","SYMBOL_CODE":1,"TTT_C":5.5}],
	"day":[{"local_date_time":"2024-03-14T00:00:00+01:00","SYMBOL_CODE":2,"TX_C":9,"TN_C":1}]
}}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*SRFProvider, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewSRFProvider(srv.Client(), srv.URL+"/", 0, zerolog.Nop(), nil)
	p.httpCfg.Backoff = BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}
	return p, &calls
}

func TestSRFProvider_Forecast(t *testing.T) {
	p, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/srf-meteo/forecast/47.0274,8.302", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("x-ratelimit-available", "49")
		fmt.Fprint(w, okPayload)
	})

	resp, err := p.Forecast(context.Background(), "tok", luzern)
	require.NoError(t, err)
	require.Len(t, resp.Forecast.Hourly, 1)
	require.Len(t, resp.Forecast.Daily, 1)
	assert.Equal(t, "5.5", fmt.Sprint(resp.Forecast.Hourly[0]["TTT_C"]))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "srf-meteo", p.Name())
}

func TestSRFProvider_ServerErrorIsFetchError(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})

	resp, err := p.Forecast(context.Background(), "tok", luzern)
	assert.Nil(t, resp)

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusInternalServerError, ferr.StatusCode)
	assert.Contains(t, ferr.Error(), "upstream down")
}

func TestSRFProvider_RetriesServerErrors(t *testing.T) {
	var n atomic.Int32
	p, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, okPayload)
	})
	p.httpCfg.Backoff.MaxRetries = 2

	_, err := p.Forecast(context.Background(), "tok", luzern)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSRFProvider_DoesNotRetryClientErrors(t *testing.T) {
	p, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	p.httpCfg.Backoff.MaxRetries = 2

	_, err := p.Forecast(context.Background(), "tok", luzern)
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusUnauthorized, ferr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSRFProvider_RejectsEmptyHourly(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"forecast":{"60minutes":[],"day":[]}}`)
	})

	_, err := p.Forecast(context.Background(), "tok", luzern)
	assert.ErrorIs(t, err, errNoHourly)
}

func TestSRFProvider_MalformedBody(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"forecast":`)
	})

	_, err := p.Forecast(context.Background(), "tok", luzern)
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Zero(t, ferr.StatusCode)
}

func TestSRFProvider_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	p, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		_, err := p.Forecast(context.Background(), "tok", luzern)
		require.Error(t, err)
	}
	_, err := p.Forecast(context.Background(), "tok", luzern)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load())
}

func TestSRFProvider_CanceledContext(t *testing.T) {
	p, calls := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okPayload)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Forecast(ctx, "tok", luzern)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDoRequestWithResilience_RejectsBadConfig(t *testing.T) {
	cb := newCircuitBreaker("test")
	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", nil)
	}

	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{}, cb, build)
	assert.ErrorIs(t, err, errNoHTTPClient)

	_, err = doRequestWithResilience(context.Background(), HTTPClientConfig{Client: http.DefaultClient}, cb, build)
	assert.ErrorIs(t, err, errInvalidConfig)
}
