// Package scheduler drives the cycle orchestrator from a fixed-period gocron job
// and serialises access to it for the status API.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-display/internal/brightness"
	"github.com/i474232898/weather-display/internal/cycle"
	"github.com/i474232898/weather-display/internal/store"
	"github.com/i474232898/weather-display/internal/weather"
)

var (
	errNoOrchestrator  = errors.New("scheduler: orchestrator is required")
	errInvalidInterval = errors.New("scheduler: tick interval must be positive")
	errCyclePanicked   = errors.New("scheduler: cycle panicked")
)

// BrightnessReporter exposes the brightness controller's state for status reads.
type BrightnessReporter interface {
	Status(now time.Time) brightness.Status
}

// Options configures a Driver.
type Options struct {
	TickInterval time.Duration
	CycleTimeout time.Duration // zero disables the per-cycle deadline
	Brightness   BrightnessReporter
	History      *store.History // optional; receives every cycle that ran
	Logger       *slog.Logger
	Now          func() time.Time
}

// Status is what the driver reports to the HTTP layer.
type Status struct {
	Cycle      cycle.Snapshot     `json:"cycle"`
	Brightness *brightness.Status `json:"brightness,omitempty"`
	Running    bool               `json:"running"`
	Ticks      uint64             `json:"ticks"`
	LastTickAt *time.Time         `json:"last_tick_at"`
	LastResult string             `json:"last_result"`
}

// Driver owns the orchestrator. Every access goes through mu.
type Driver struct {
	mu   sync.Mutex
	orch *cycle.Orchestrator

	scheduler  *gocron.Scheduler
	tick       time.Duration
	timeout    time.Duration
	brightness BrightnessReporter
	history    *store.History
	now        func() time.Time
	logger     *slog.Logger

	ticks      uint64
	lastTickAt time.Time
	lastResult cycle.Result
}

// New creates a Driver. The gocron scheduler runs in the local time zone so
// that logged schedule times match the daytime window.
func New(orch *cycle.Orchestrator, opts Options) (*Driver, error) {
	if orch == nil {
		return nil, errNoOrchestrator
	}
	if opts.TickInterval <= 0 {
		return nil, errInvalidInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := gocron.NewScheduler(time.Local)
	// A slow fetch must never overlap the next tick.
	s.SingletonModeAll()

	return &Driver{
		orch:       orch,
		scheduler:  s,
		tick:       opts.TickInterval,
		timeout:    opts.CycleTimeout,
		brightness: opts.Brightness,
		history:    opts.History,
		now:        opts.Now,
		logger:     opts.Logger,
	}, nil
}

// Start schedules the tick job and starts the underlying scheduler. The first
// tick runs immediately.
func (d *Driver) Start() error {
	_, err := d.scheduler.Every(d.tick).Do(func() {
		d.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduler: schedule tick: %w", err)
	}
	d.scheduler.StartAsync()
	d.logger.Info("scheduler started", "tick", d.tick, "cycle_timeout", d.timeout)
	return nil
}

// Stop stops the scheduler. A cycle already in progress is allowed to finish.
func (d *Driver) Stop() {
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	// Wait for any in-flight cycle.
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Info("scheduler stopped", "ticks", d.ticks)
}

// RunOnce performs one tick at the driver's current time.
func (d *Driver) RunOnce(ctx context.Context) cycle.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	res, err := d.runGuarded(ctx, now)
	if err != nil {
		d.logger.Error("cycle aborted", "error", err)
		res = cycle.Failed
	}

	d.ticks++
	d.lastTickAt = now
	d.lastResult = res
	if res.Ran() {
		d.logger.Debug("tick complete", "result", res.String())
		d.record(now, res)
	}
	return res
}

func (d *Driver) record(now time.Time, res cycle.Result) {
	if d.history == nil {
		return
	}
	snap := d.orch.Status(now)
	d.history.Record(store.Entry{
		At:           now,
		Result:       res.String(),
		BackoffState: snap.BackoffState.String(),
		AttemptCount: snap.AttemptCount,
		ForecastDays: snap.LastForecastDays,
		Error:        snap.LastError,
	})
}

// runGuarded keeps a panicking collaborator from killing the gocron worker.
func (d *Driver) runGuarded(ctx context.Context, now time.Time) (res cycle.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errCyclePanicked, r)
		}
	}()
	return d.orch.RunCycle(ctx, now), nil
}

func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	st := Status{
		Cycle:   d.orch.Status(now),
		Running: d.scheduler.IsRunning(),
		Ticks:   d.ticks,
	}
	if !d.lastTickAt.IsZero() {
		t := d.lastTickAt
		st.LastTickAt = &t
		st.LastResult = d.lastResult.String()
	}
	if d.brightness != nil {
		b := d.brightness.Status(now)
		st.Brightness = &b
	}
	return st
}

// LastForecast returns a copy of the most recent forecast, or nil.
func (d *Driver) LastForecast() weather.Forecast {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.orch.LastForecast()
}

// ResetBackoff clears the failure streak; the next due tick fetches normally.
func (d *Driver) ResetBackoff() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orch.ResetBackoff()
	d.logger.Info("backoff reset by operator")
}
