package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Pruner drops stored history older than a cutoff.
type Pruner interface {
	Prune(before time.Time) (int, error)
}

// Retention periodically prunes snapshot history older than maxAge.
type Retention struct {
	scheduler *gocron.Scheduler
	pruner    Pruner
	interval  time.Duration
	maxAge    time.Duration
	logger    zerolog.Logger

	now func() time.Time
}

// NewRetention creates a new Retention job.
func NewRetention(pruner Pruner, interval, maxAge time.Duration, logger zerolog.Logger) *Retention {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Retention{
		scheduler: s,
		pruner:    pruner,
		interval:  interval,
		maxAge:    maxAge,
		logger:    logger.With().Str("component", "retention").Logger(),
		now:       time.Now,
	}
}

// Start schedules the prune job and starts the underlying scheduler.
// A non-positive maxAge disables retention.
func (r *Retention) Start() error {
	if r.maxAge <= 0 {
		r.logger.Info().Msg("no max age configured; history is kept")
		return nil
	}

	interval := r.interval
	if interval <= 0 {
		interval = time.Hour
	}

	if _, err := r.scheduler.Every(interval).Do(func() { r.PruneOnce() }); err != nil {
		return err
	}

	r.scheduler.StartAsync()
	return nil
}

// PruneOnce removes history older than maxAge and returns how many snapshots went.
func (r *Retention) PruneOnce() int {
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.pruner.Prune(cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to prune snapshot history")
		return 0
	}
	if n > 0 {
		r.logger.Info().Int("removed", n).Time("cutoff", cutoff).Msg("pruned snapshot history")
	}
	return n
}

// Stop stops the scheduler and cancels any future jobs.
func (r *Retention) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}
