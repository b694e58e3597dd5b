package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/srf-weather/internal/metrics"
)

// Outcome tags the result of one update cycle.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCredentialFailure
	OutcomeFetchFailure
	OutcomeInternalFailure
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCredentialFailure:
		return "credential_failure"
	case OutcomeFetchFailure:
		return "fetch_failure"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "internal_failure"
	}
}

// Service runs the fetch-authenticate-parse part of an update cycle for one location.
type Service struct {
	loc     Location
	tokens  TokenSource
	source  ForecastSource
	parser  *Parser
	logger  zerolog.Logger
	metrics metrics.Recorder

	now func() time.Time
}

// NewService creates a new Service. A nil recorder disables metrics.
func NewService(loc Location, tokens TokenSource, source ForecastSource, logger zerolog.Logger, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	logger = logger.With().Str("component", "weather").Str("location_id", loc.ID()).Logger()
	return &Service{
		loc:     loc,
		tokens:  tokens,
		source:  source,
		parser:  NewParser(NewSymbolMapper(logger)),
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// Location returns the location the service fetches for.
func (s *Service) Location() Location {
	return s.loc
}

// Update obtains a token, fetches the forecast and builds a fresh Snapshot.
// The returned Outcome classifies the error, if any. Single malformed
// forecast records are dropped and never fail the cycle.
func (s *Service) Update(ctx context.Context) (Snapshot, Outcome, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return Snapshot{}, s.classify(ctx, err, OutcomeCredentialFailure), fmt.Errorf("obtain access token: %w", err)
	}

	start := s.now()
	resp, err := s.source.Forecast(ctx, token, s.loc)
	s.metrics.RecordFetchLatency(s.now().Sub(start))
	if err != nil {
		return Snapshot{}, s.classify(ctx, err, OutcomeFetchFailure), fmt.Errorf("fetch forecast: %w", err)
	}

	snap, err := s.buildSnapshot(resp)
	if err != nil {
		return Snapshot{}, OutcomeFetchFailure, err
	}
	return snap, OutcomeSuccess, nil
}

func (s *Service) classify(ctx context.Context, err error, fallback Outcome) Outcome {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return OutcomeCanceled
	}
	return fallback
}

func (s *Service) buildSnapshot(resp *ForecastResponse) (Snapshot, error) {
	now := s.now()

	hourly := resp.Forecast.Hourly
	if len(hourly) == 0 {
		return Snapshot{}, errors.New("forecast payload has no hourly records")
	}

	rec, fallback := SelectCurrent(hourly, now)
	if fallback {
		s.logger.Warn().Time("now", now).Msg("no forecast found for current hour, using last hourly record")
	}
	current, err := s.parser.ParseCurrent(rec)
	if err != nil {
		return Snapshot{}, fmt.Errorf("current conditions: %w", err)
	}

	return Snapshot{
		Location:  s.loc,
		FetchedAt: now.UTC(),
		Current:   current,
		Daily:     s.parseAll(resp.Forecast.Daily, KindDaily),
		Hourly:    s.parseAll(hourly, KindHourly),
	}, nil
}

func (s *Service) parseAll(records []Record, kind Kind) []ForecastEntry {
	entries := make([]ForecastEntry, 0, len(records))
	for i, rec := range records {
		entry, err := s.parser.Parse(rec, kind)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("kind", kind.String()).
				Int("index", i).
				Msg("failed to parse forecast record, skipping")
			s.metrics.RecordParseSkip(kind.String())
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// SelectCurrent returns the first hourly record whose timestamp is strictly
// after now. When none is (end of the forecast window) it returns the last
// record and reports the fallback. Records with an unreadable timestamp are
// passed over. hourly must not be empty.
func SelectCurrent(hourly []Record, now time.Time) (Record, bool) {
	for _, rec := range hourly {
		ts, err := recordTime(rec, FieldLocalDateTime)
		if err != nil {
			continue
		}
		if ts.After(now) {
			return rec, false
		}
	}
	return hourly[len(hourly)-1], true
}
