package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/srf-weather/internal/metrics"
	"github.com/i474232898/srf-weather/internal/weather"
)

const (
	DefaultMinInterval = 55 * time.Minute
	DefaultMaxInterval = 65 * time.Minute
)

// Cycler runs one fetch-and-publish cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (weather.Outcome, error)
}

// State of a Loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Loop drives a Cycler until its context is cancelled, sleeping a jittered
// interval between cycles. Cycles never overlap.
type Loop struct {
	cycler      Cycler
	minInterval time.Duration
	maxInterval time.Duration
	logger      zerolog.Logger
	metrics     metrics.Recorder
	state       atomic.Int32

	// Rand returns a value in [0, 1) used to pick each delay.
	Rand func() float64
	// After waits for the delay; tests replace it to skip real sleeping.
	After func(d time.Duration) <-chan time.Time
}

// NewLoop creates a Loop. A non-positive or inverted interval range falls
// back to the defaults. A nil recorder disables metrics.
func NewLoop(cycler Cycler, minInterval, maxInterval time.Duration, logger zerolog.Logger, recorder metrics.Recorder) *Loop {
	if minInterval <= 0 || maxInterval < minInterval {
		minInterval, maxInterval = DefaultMinInterval, DefaultMaxInterval
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Loop{
		cycler:      cycler,
		minInterval: minInterval,
		maxInterval: maxInterval,
		logger:      logger.With().Str("component", "scheduler").Logger(),
		metrics:     recorder,
		Rand:        rand.Float64,
		After:       time.After,
	}
}

// State reports where the loop is in its lifecycle.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// NextDelay draws the sleep before the next cycle from [min, max).
func (l *Loop) NextDelay() time.Duration {
	span := l.maxInterval - l.minInterval
	return l.minInterval + time.Duration(l.Rand()*float64(span))
}

// Run executes a cycle immediately and then one per drawn delay until ctx is
// cancelled. Failed cycles are logged and never end the loop.
func (l *Loop) Run(ctx context.Context) {
	l.state.Store(int32(StateRunning))
	defer l.state.Store(int32(StateStopped))

	l.logger.Info().
		Dur("min_interval", l.minInterval).
		Dur("max_interval", l.maxInterval).
		Msg("update loop started")
	defer l.logger.Info().Msg("update loop stopped")

	for {
		if outcome := l.runCycle(ctx); outcome == weather.OutcomeCanceled || ctx.Err() != nil {
			return
		}

		delay := l.NextDelay()
		l.logger.Debug().Dur("delay", delay).Msg("next update scheduled")

		select {
		case <-ctx.Done():
			return
		case <-l.After(delay):
		}
	}
}

func (l *Loop) runCycle(ctx context.Context) (outcome weather.Outcome) {
	log := l.logger.With().Str("cycle_id", uuid.NewString()).Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome = weather.OutcomeInternalFailure
			log.Error().Err(fmt.Errorf("panic: %v", r)).Msg("update cycle panicked")
		}
		l.metrics.RecordCycle(outcome.String())
	}()

	outcome, err := l.cycler.RunCycle(ctx)
	switch outcome {
	case weather.OutcomeSuccess:
		log.Info().Dur("took", time.Since(start)).Msg("weather updated")
	case weather.OutcomeCanceled:
		log.Debug().Err(err).Msg("update cycle canceled")
	case weather.OutcomeCredentialFailure:
		log.Error().Err(err).Msg("failed to obtain access token, keeping previous state")
	case weather.OutcomeFetchFailure:
		log.Error().Err(err).Msg("failed to fetch forecast, keeping previous state")
	default:
		log.Error().Err(err).Str("outcome", outcome.String()).Msg("update cycle failed")
	}
	return outcome
}
