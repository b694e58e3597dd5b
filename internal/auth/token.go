package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/srf-weather/internal/metrics"
)

// TokenPath is the client-credentials endpoint below the API base URL.
const TokenPath = "/oauth/v1/accesstoken"

// issuedAtMillisThreshold separates millisecond from second timestamps;
// 1e12 seconds is far in the future, 1e12 milliseconds is 2001.
const issuedAtMillisThreshold = 1_000_000_000_000

// ErrMissingKeys is wrapped by a CredentialError when the token response
// lacks required keys.
var ErrMissingKeys = errors.New("client credentials response missing keys")

// CredentialError reports a failed token renewal. The cached state is left
// untouched when it is returned.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credentials %s: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// TokenManager hands out access tokens from the cached credential state and
// renews them with the client-credentials grant once they expire.
type TokenManager struct {
	mu       sync.Mutex
	client   *http.Client
	tokenURL string
	store    CredentialStore
	state    *CredentialState
	logger   zerolog.Logger
	metrics  metrics.Recorder

	now func() time.Time
}

// NewTokenManager creates a TokenManager for the API at baseURL.
// A nil recorder disables metrics.
func NewTokenManager(client *http.Client, baseURL string, store CredentialStore, logger zerolog.Logger, recorder metrics.Recorder) *TokenManager {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &TokenManager{
		client:   client,
		tokenURL: strings.TrimRight(baseURL, "/") + TokenPath,
		store:    store,
		logger:   logger.With().Str("component", "auth").Logger(),
		metrics:  recorder,
		now:      time.Now,
	}
}

// Token returns a valid access token, renewing it first when it is absent or
// expired. Renewal failures are returned as *CredentialError.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		state, err := m.store.Load(ctx)
		if err != nil {
			return "", &CredentialError{Op: "load", Err: err}
		}
		m.state = &state
	}

	now := m.now()
	if !m.state.Expired(now) {
		return m.state.AccessToken, nil
	}

	m.logger.Info().Msg("renewing api key")
	token, expiresAt, err := m.requestToken(ctx, m.state.ConsumerKey, m.state.ConsumerSecret, now)
	m.metrics.RecordTokenRenewal(err == nil)
	if err != nil {
		m.logger.Warn().Err(err).Msg("access token renewal failed")
		return "", err
	}

	renewed := *m.state
	renewed.AccessToken = token
	renewed.ExpiresAt = expiresAt
	m.state = &renewed

	if err := m.store.Save(ctx, renewed); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist renewed access token")
	}

	m.logger.Info().
		Time("expires_at", time.Unix(expiresAt, 0)).
		Msg("access token renewed")
	return token, nil
}

// ExpiresAt returns the expiry of the cached token, zero when there is none.
func (m *TokenManager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(m.state.ExpiresAt, 0)
}

// tokenResponse fields are pointers so absent keys can be told apart.
type tokenResponse struct {
	AccessToken *string    `json:"access_token"`
	ExpiresIn   *flexInt64 `json:"expires_in"`
	IssuedAt    *flexInt64 `json:"issued_at"`
}

func (m *TokenManager) requestToken(ctx context.Context, key, secret string, now time.Time) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL+"?grant_type=client_credentials", nil)
	if err != nil {
		return "", 0, &CredentialError{Op: "build request", Err: err}
	}
	req.SetBasicAuth(key, secret)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", 0, &CredentialError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &CredentialError{Op: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &CredentialError{
			Op:  "request",
			Err: fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body)),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, &CredentialError{Op: "decode response", Err: err}
	}

	var missing []string
	if tr.AccessToken == nil || *tr.AccessToken == "" {
		missing = append(missing, "access_token")
	}
	if tr.ExpiresIn == nil {
		missing = append(missing, "expires_in")
	}
	if len(missing) > 0 {
		return "", 0, &CredentialError{
			Op:  "validate response",
			Err: fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", ")),
		}
	}

	issuedAt := now.Unix()
	if tr.IssuedAt != nil {
		issuedAt = issuedAtSeconds(int64(*tr.IssuedAt))
	}
	expiresAt := issuedAt + int64(*tr.ExpiresIn)
	if expiresAt <= now.Unix() {
		return "", 0, &CredentialError{
			Op:  "validate response",
			Err: fmt.Errorf("token already expired at %s", time.Unix(expiresAt, 0).UTC().Format(time.RFC3339)),
		}
	}

	return *tr.AccessToken, expiresAt, nil
}

// issuedAtSeconds accepts issued_at in milliseconds (as the provider sends
// it) or in seconds.
func issuedAtSeconds(v int64) int64 {
	if v >= issuedAtMillisThreshold {
		return v / 1000
	}
	return v
}

// flexInt64 decodes a JSON number or a string holding one.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", b)
	}
	*f = flexInt64(n)
	return nil
}
