package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/srf-weather/internal/entity"
	"github.com/i474232898/srf-weather/internal/scheduler"
	"github.com/i474232898/srf-weather/internal/store"
	"github.com/i474232898/srf-weather/internal/weather"
)

var validate = validator.New()

// EntityReader is the read side of the weather entity.
type EntityReader interface {
	State() (entity.State, bool)
	Location() weather.Location
	LoopState() scheduler.State
}

// HistoryReader serves stored snapshots.
type HistoryReader interface {
	GetRange(loc weather.Location, from, to time.Time) ([]weather.Snapshot, error)
}

// Deps are the collaborators the routes read from. Metrics may be nil.
type Deps struct {
	Entity  EntityReader
	History HistoryReader
	Metrics http.Handler
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"loop":   deps.Entity.LoopState().String(),
		})
	})

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		state, ok := deps.Entity.State()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no weather data yet")
		}
		return c.JSON(state)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		q := forecastQuery{Kind: c.Query("kind", "daily")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		state, ok := deps.Entity.State()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no weather data yet")
		}

		entries := state.Forecast
		if q.Kind == "hourly" {
			entries = state.HourlyForecast
		}
		return c.JSON(fiber.Map{
			"kind":     q.Kind,
			"forecast": entries,
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		if deps.History == nil {
			return fiber.NewError(fiber.StatusNotFound, "history is not stored")
		}

		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := deps.Entity.Location()
		snapshots, err := deps.History.GetRange(loc, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"location":  loc,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})
}

type forecastQuery struct {
	Kind string `validate:"oneof=daily hourly"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
