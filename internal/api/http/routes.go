package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-display/internal/cycle"
	"github.com/i474232898/weather-display/internal/scheduler"
	"github.com/i474232898/weather-display/internal/store"
	"github.com/i474232898/weather-display/internal/weather"
)

var validate = validator.New()

// Driver is the part of the scheduler the API exposes.
type Driver interface {
	Status() scheduler.Status
	LastForecast() weather.Forecast
	ResetBackoff()
	RunOnce(ctx context.Context) cycle.Result
}

// BrightnessSetter adjusts the levels applied from the next cycle onwards.
type BrightnessSetter interface {
	SetMax(level int)
	SetDay(level int)
	SetNight(level int)
}

// HistoryReader serves recorded cycle outcomes.
type HistoryReader interface {
	Latest() (store.Entry, error)
	Range(from, to time.Time) ([]store.Entry, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. bright and history
// may be nil, in which case their endpoints are not registered.
func RegisterRoutes(app *fiber.App, driver Driver, bright BrightnessSetter, history HistoryReader) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(driver.Status())
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		forecast := driver.LastForecast()
		if len(forecast) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no forecast fetched yet")
		}
		return c.JSON(fiber.Map{"days": forecast})
	})

	v1.Post("/backoff/reset", func(c *fiber.Ctx) error {
		driver.ResetBackoff()
		return c.JSON(driver.Status())
	})

	// Runs a tick now. The cadence still decides whether anything happens.
	v1.Post("/cycle/run", func(c *fiber.Ctx) error {
		res := driver.RunOnce(c.UserContext())
		return c.JSON(fiber.Map{
			"result":  res.String(),
			"ran":     res.Ran(),
			"success": res.Success(),
		})
	})

	if history != nil {
		v1.Get("/history/latest", func(c *fiber.Ctx) error {
			entry, err := history.Latest()
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fiber.NewError(fiber.StatusNotFound, "no cycle has run yet")
				}
				return fiber.NewError(fiber.StatusInternalServerError, "failed to read cycle history")
			}
			return c.JSON(entry)
		})

		v1.Get("/history", func(c *fiber.Ctx) error {
			var req historyQuery
			if err := req.bind(c); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			if err := validate.Struct(req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}

			entries, err := history.Range(req.From, req.To)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fiber.NewError(fiber.StatusNotFound, "no cycle history for requested range")
				}
				return fiber.NewError(fiber.StatusInternalServerError, "failed to read cycle history")
			}
			return c.JSON(fiber.Map{
				"from":    req.From,
				"to":      req.To,
				"entries": entries,
			})
		})
	}

	if bright != nil {
		v1.Put("/brightness", func(c *fiber.Ctx) error {
			var req brightnessRequest
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
			}
			if err := req.validate(); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			req.apply(bright)
			return c.JSON(driver.Status())
		})
	}
}

// brightnessRequest holds the optional level overrides.
type brightnessRequest struct {
	Max   *int `json:"max" validate:"omitempty,min=0,max=255"`
	Day   *int `json:"day" validate:"omitempty,min=0,max=255"`
	Night *int `json:"night" validate:"omitempty,min=0,max=255"`
}

func (r brightnessRequest) validate() error {
	if r.Max == nil && r.Day == nil && r.Night == nil {
		return errors.New("at least one of max, day or night is required")
	}
	return validate.Struct(r)
}

func (r brightnessRequest) apply(b BrightnessSetter) {
	if r.Max != nil {
		b.SetMax(*r.Max)
	}
	if r.Day != nil {
		b.SetDay(*r.Day)
	}
	if r.Night != nil {
		b.SetNight(*r.Night)
	}
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
