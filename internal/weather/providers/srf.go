package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/srf-weather/internal/metrics"
	"github.com/i474232898/srf-weather/internal/weather"
)

// ForecastPath is the forecast resource below the API base URL.
const ForecastPath = "/srf-meteo/forecast/"

var errNoHourly = errors.New("forecast payload has no 60minutes records")

// SRFProvider fetches forecasts from the SRF Meteo API.
type SRFProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewSRFProvider creates a provider for the API at baseURL. ratePerMinute
// caps outgoing forecast requests; zero or less disables the cap.
func NewSRFProvider(client *http.Client, baseURL string, ratePerMinute int, logger zerolog.Logger, recorder metrics.Recorder) *SRFProvider {
	limit := rate.Inf
	if ratePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(ratePerMinute))
	}

	return &SRFProvider{
		name:    "srf-meteo",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
			Limiter: rate.NewLimiter(limit, 1),
			Metrics: recorder,
		},
		circuit: newCircuitBreaker("srf-meteo"),
		logger:  logger.With().Str("provider", "srf-meteo").Logger(),
	}
}

func (p *SRFProvider) Name() string {
	return p.name
}

// Forecast implements weather.ForecastSource.
func (p *SRFProvider) Forecast(ctx context.Context, token string, loc weather.Location) (*weather.ForecastResponse, error) {
	// The comma in the geolocation id is kept literal.
	u := p.baseURL + ForecastPath + loc.GeolocationID()

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if avail := resp.Header.Get("x-ratelimit-available"); avail != "" {
		p.logger.Debug().
			Str("available", avail).
			Str("reset", resp.Header.Get("x-ratelimit-reset-time")).
			Msg("api quota")
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var payload weather.ForecastResponse
	if err := dec.Decode(&payload); err != nil {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(payload.Forecast.Hourly) == 0 {
		return nil, &FetchError{URL: u, Err: errNoHourly}
	}

	return &payload, nil
}

// WithBackoff replaces the retry policy of the provider.
func (p *SRFProvider) WithBackoff(b BackoffConfig) *SRFProvider {
	p.httpCfg.Backoff = b
	return p
}
