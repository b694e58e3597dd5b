// Package entity is the host-facing side of the weather integration: it owns
// the published snapshot, runs the update loop between Attach and Detach and
// fans every fresh state out to the configured publishers.
package entity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/srf-weather/internal/metrics"
	"github.com/i474232898/srf-weather/internal/scheduler"
	"github.com/i474232898/srf-weather/internal/weather"
)

// ErrAttached is returned by Attach while the update loop is already running.
var ErrAttached = errors.New("entity already attached")

// Updater produces a fresh snapshot per cycle.
type Updater interface {
	Update(ctx context.Context) (weather.Snapshot, weather.Outcome, error)
	Location() weather.Location
}

// Publisher receives the entity state after every successful cycle.
type Publisher interface {
	Publish(ctx context.Context, state State) error
}

// Attributes are the extra state attributes next to the core weather fields.
type Attributes struct {
	WindDirection   float64 `json:"wind_direction"`
	SymbolID        int     `json:"symbol_id"`
	Precipitation   float64 `json:"precipitation"`
	RainProbability float64 `json:"rain_probability"`
}

// State is what the host reads from the entity.
type State struct {
	UniqueID        string                  `json:"unique_id"`
	Name            string                  `json:"name"`
	Attribution     string                  `json:"attribution"`
	TemperatureUnit string                  `json:"temperature_unit"`
	Condition       weather.Condition       `json:"condition"`
	Temperature     float64                 `json:"temperature"`
	WindSpeed       float64                 `json:"wind_speed"`
	WindBearing     string                  `json:"wind_bearing"`
	Forecast        []weather.ForecastEntry `json:"forecast"`
	HourlyForecast  []weather.ForecastEntry `json:"hourly_forecast"`
	Attributes      Attributes              `json:"attributes"`
	UpdatedAt       time.Time               `json:"updated_at"`

	Snapshot weather.Snapshot `json:"-"`
}

// Options configures an Entity. Zero intervals use the loop defaults.
type Options struct {
	Name        string
	MinInterval time.Duration
	MaxInterval time.Duration
	Publishers  []Publisher
	Metrics     metrics.Recorder
}

// Entity is one weather entity bound to a single location.
type Entity struct {
	name       string
	updater    Updater
	publishers []Publisher
	logger     zerolog.Logger
	loop       *scheduler.Loop

	snapshot atomic.Pointer[weather.Snapshot]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a detached Entity.
func New(updater Updater, opts Options, logger zerolog.Logger) *Entity {
	loc := updater.Location()
	name := opts.Name
	if name == "" {
		name = loc.Name
	}

	e := &Entity{
		name:       name,
		updater:    updater,
		publishers: opts.Publishers,
		logger:     logger.With().Str("component", "entity").Str("unique_id", loc.ID()).Logger(),
	}
	e.loop = scheduler.NewLoop(e, opts.MinInterval, opts.MaxInterval, logger, opts.Metrics)
	return e
}

// UniqueID is stable for the configured coordinates.
func (e *Entity) UniqueID() string {
	return e.updater.Location().ID()
}

func (e *Entity) Name() string {
	return e.name
}

func (e *Entity) Attribution() string {
	return weather.Attribution
}

func (e *Entity) Location() weather.Location {
	return e.updater.Location()
}

// Seed publishes a previously stored snapshot without running a cycle, so a
// restarted process serves the last known state until the first update.
// It is ignored once a snapshot is present.
func (e *Entity) Seed(snap weather.Snapshot) {
	e.snapshot.CompareAndSwap(nil, &snap)
}

// State returns the current state, false until the first snapshot exists.
func (e *Entity) State() (State, bool) {
	snap := e.snapshot.Load()
	if snap == nil {
		return State{}, false
	}
	return e.stateFrom(*snap), true
}

// LoopState reports the lifecycle of the update loop.
func (e *Entity) LoopState() scheduler.State {
	return e.loop.State()
}

// Attach starts the update loop. The loop runs until Detach is called or ctx
// is cancelled.
func (e *Entity) Attach(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return ErrAttached
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	go func() {
		defer close(done)
		e.loop.Run(ctx)
	}()

	e.logger.Info().Msg("entity attached")
	return nil
}

// Detach cancels the update loop and waits for it to exit. Detaching a
// detached entity is a no-op.
func (e *Entity) Detach() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.logger.Info().Msg("entity detached")
}

// RunCycle implements scheduler.Cycler. The published snapshot is replaced
// only when the update succeeds.
func (e *Entity) RunCycle(ctx context.Context) (weather.Outcome, error) {
	snap, outcome, err := e.updater.Update(ctx)
	if outcome != weather.OutcomeSuccess {
		return outcome, err
	}

	e.snapshot.Store(&snap)
	state := e.stateFrom(snap)

	for _, p := range e.publishers {
		if err := p.Publish(ctx, state); err != nil {
			e.logger.Warn().Err(err).Msg("failed to publish state")
		}
	}
	return weather.OutcomeSuccess, nil
}

func (e *Entity) stateFrom(snap weather.Snapshot) State {
	cur := snap.Current
	return State{
		UniqueID:        snap.Location.ID(),
		Name:            e.name,
		Attribution:     weather.Attribution,
		TemperatureUnit: weather.TemperatureUnit,
		Condition:       cur.Condition,
		Temperature:     cur.Temperature,
		WindSpeed:       cur.WindSpeedKMH,
		WindBearing:     cur.WindBearing,
		Forecast:        snap.Daily,
		HourlyForecast:  snap.Hourly,
		Attributes: Attributes{
			WindDirection:   cur.WindBearingDeg,
			SymbolID:        cur.SymbolID,
			Precipitation:   cur.PrecipitationMM,
			RainProbability: cur.RainProbability,
		},
		UpdatedAt: snap.FetchedAt,
		Snapshot:  snap,
	}
}
