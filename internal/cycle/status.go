package cycle

import (
	"time"

	"github.com/i474232898/weather-display/internal/backoff"
	"github.com/i474232898/weather-display/internal/weather"
)

// Snapshot is a read-only view of the orchestrator, used by the status endpoint.
type Snapshot struct {
	NextRunAt        time.Time     `json:"next_run_at"`
	NextRunIn        time.Duration `json:"-"`
	NextRunInMinutes int           `json:"next_run_in_minutes"`
	Daytime          bool          `json:"daytime"`
	IntervalMinutes  int           `json:"interval_minutes"`

	BackoffState    backoff.State `json:"backoff_state"`
	AttemptCount    uint          `json:"attempt_count"`
	BackoffInterval time.Duration `json:"-"`
	StreakStartedAt *time.Time    `json:"streak_started_at"`
	StreakDeadline  *time.Time    `json:"streak_deadline"`

	LastForecastDays int        `json:"last_forecast_days"`
	LastFetchAt      *time.Time `json:"last_fetch_at"`
	LastSuccessAt    *time.Time `json:"last_success_at"`
	LastError        string     `json:"last_error,omitempty"`

	DisplayReady bool `json:"display_ready"`
	Brightness   int  `json:"brightness"`
}

// Status reports the scheduler and display state as of now. It has no side effects.
// IntervalMinutes is the cadence interval in effect at now. StreakDeadline is
// when an active failure streak will be declared exhausted.
func (o *Orchestrator) Status(now time.Time) Snapshot {
	daytime := o.cadence.IsDaytime(now)
	window := o.cadence.Window()
	interval := window.NightInterval
	if daytime {
		interval = window.DaytimeInterval
	}

	var deadline time.Time
	if started := o.backoff.StreakStartedAt(); !started.IsZero() {
		deadline = started.Add(o.backoff.Config().MaxStreakDuration)
	}

	return Snapshot{
		NextRunAt:        o.cadence.NextRunAt(),
		NextRunIn:        o.cadence.TimeUntilNext(now),
		NextRunInMinutes: o.cadence.MinutesUntilNext(now),
		Daytime:          daytime,
		IntervalMinutes:  int(interval / time.Minute),
		BackoffState:     o.backoff.State(),
		AttemptCount:     o.backoff.AttemptCount(),
		BackoffInterval:  o.backoff.LastInterval(),
		StreakStartedAt:  timePtr(o.backoff.StreakStartedAt()),
		StreakDeadline:   timePtr(deadline),
		LastForecastDays: len(o.lastForecast),
		LastFetchAt:      timePtr(o.lastFetchAt),
		LastSuccessAt:    timePtr(o.lastRenderAt),
		LastError:        o.lastErr,
		DisplayReady:     o.display.Ready(),
		Brightness:       o.display.Brightness(),
	}
}

// LastForecast returns a copy of the most recently fetched forecast, or nil.
func (o *Orchestrator) LastForecast() weather.Forecast {
	return o.lastForecast.Clone()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
