package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/srf-weather/internal/weather"
)

type step struct {
	outcome weather.Outcome
	err     error
	panics  bool
}

// scriptedCycler plays back steps and cancels once they run out.
type scriptedCycler struct {
	mu     sync.Mutex
	steps  []step
	calls  int
	cancel context.CancelFunc
}

func (c *scriptedCycler) RunCycle(ctx context.Context) (weather.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if len(c.steps) == 0 {
		c.cancel()
		return weather.OutcomeCanceled, ctx.Err()
	}
	s := c.steps[0]
	c.steps = c.steps[1:]
	if s.panics {
		panic("boom")
	}
	return s.outcome, s.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingMetrics) RecordCycle(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
func (r *recordingMetrics) RecordParseSkip(string) {}
func (r *recordingMetrics) RecordTokenRenewal(bool) {}
func (r *recordingMetrics) RecordHTTPStatus(int) {}
func (r *recordingMetrics) RecordFetchLatency(time.Duration) {}

func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func TestLoop_SurvivesFailuresAndPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycler := &scriptedCycler{
		cancel: cancel,
		steps: []step{
			{outcome: weather.OutcomeFetchFailure, err: errors.New("status 500")},
			{panics: true},
			{outcome: weather.OutcomeCredentialFailure, err: errors.New("bad keys")},
			{outcome: weather.OutcomeSuccess},
		},
	}
	rec := &recordingMetrics{}
	var logs bytes.Buffer
	l := NewLoop(cycler, time.Minute, 2*time.Minute, zerolog.New(&logs), rec)

	var delays []time.Duration
	l.After = func(d time.Duration) <-chan time.Time {
		delays = append(delays, d)
		return immediate(d)
	}

	l.Run(ctx)

	assert.Equal(t, 5, cycler.calls)
	assert.Equal(t, []string{"fetch_failure", "internal_failure", "credential_failure", "success", "canceled"}, rec.outcomes)
	assert.Len(t, delays, 4)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, time.Minute)
		assert.Less(t, d, 2*time.Minute)
	}
	assert.Equal(t, StateStopped, l.State())
	assert.Contains(t, logs.String(), "update cycle panicked")
	assert.Contains(t, logs.String(), "cycle_id")
}

func TestLoop_CancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cycler := &scriptedCycler{cancel: func() {}, steps: []step{{outcome: weather.OutcomeSuccess}}}
	l := NewLoop(cycler, time.Hour, 2*time.Hour, zerolog.Nop(), nil)

	sleeping := make(chan struct{})
	l.After = func(time.Duration) <-chan time.Time {
		close(sleeping)
		return make(chan time.Time)
	}

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	<-sleeping
	assert.Equal(t, StateRunning, l.State())
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	assert.Equal(t, 1, cycler.calls)
	assert.Equal(t, StateStopped, l.State())
}

func TestLoop_NextDelay(t *testing.T) {
	l := NewLoop(&scriptedCycler{}, 0, 0, zerolog.Nop(), nil)

	l.Rand = func() float64 { return 0 }
	assert.Equal(t, DefaultMinInterval, l.NextDelay())

	l.Rand = func() float64 { return 0.5 }
	assert.Equal(t, 60*time.Minute, l.NextDelay())

	l.Rand = func() float64 { return 0.999999 }
	assert.Less(t, l.NextDelay(), DefaultMaxInterval)
}

func TestLoop_InitialState(t *testing.T) {
	l := NewLoop(&scriptedCycler{}, time.Minute, time.Minute, zerolog.Nop(), nil)
	require.Equal(t, StateIdle, l.State())
	assert.Equal(t, time.Minute, l.NextDelay(), "equal bounds give a fixed interval")
}
