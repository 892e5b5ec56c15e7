// Package cycle runs one fetch-and-render attempt per external tick.
//
// The cadence scheduler decides whether a tick acts at all. A successful fetch
// is rendered and, if the render succeeds, advances the cadence. A failed fetch
// is counted by the backoff scheduler; once the streak is exhausted the error
// pattern is shown and a diagnostic report is written. Collaborator errors never
// escape RunCycle.
//
// An Orchestrator is not safe for concurrent use. Callers that observe it from
// other goroutines must serialise access themselves.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/weather-display/internal/backoff"
	"github.com/i474232898/weather-display/internal/cadence"
	"github.com/i474232898/weather-display/internal/weather"
)

// Fetcher retrieves the latest forecast.
type Fetcher interface {
	Fetch(ctx context.Context) (weather.Forecast, error)
}

// Renderer draws forecasts and the error pattern. Both calls must be idempotent.
type Renderer interface {
	Render(forecast weather.Forecast) error
	RenderErrorPattern() error
}

// BrightnessSource yields the level (0-255) to apply at now.
type BrightnessSource interface {
	CurrentBrightness(now time.Time) int
}

// Display is the part of the panel the orchestrator talks to directly.
type Display interface {
	SetBrightness(level int) error
	Brightness() int
	Ready() bool
}

// DiagnosticsSink persists diagnostic reports on a best-effort basis.
type DiagnosticsSink interface {
	Write(report DiagnosticReport) error
}

// Result is the outcome of one RunCycle call.
type Result uint8

const (
	// Skipped means the cadence was not due; nothing happened.
	Skipped Result = iota
	// Succeeded means the cycle ran and did not fail. A fetch failure that has
	// not exhausted the backoff streak counts as success.
	Succeeded
	// Failed means the cycle ran and either the render failed or the backoff
	// streak is exhausted.
	Failed
)

func (r Result) Ran() bool { return r != Skipped }

func (r Result) Success() bool { return r == Succeeded }

func (r Result) String() string {
	switch r {
	case Skipped:
		return "skipped"
	case Succeeded:
		return "ran(ok)"
	case Failed:
		return "ran(failed)"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

const retriesExhaustedMessage = "retries exhausted"

var errMissingCollaborator = errors.New("missing collaborator")

// Options wires an Orchestrator.
type Options struct {
	Cadence     *cadence.Scheduler
	Backoff     *backoff.Scheduler
	Fetcher     Fetcher
	Renderer    Renderer
	Brightness  BrightnessSource
	Display     Display
	Diagnostics DiagnosticsSink // optional
	Logger      *slog.Logger    // optional

	// CountRenderFailures records render failures against the backoff streak,
	// giving a persistently failing display an exhaustion path. Off by default:
	// render failures are otherwise retried at the cadence rate forever.
	CountRenderFailures bool
}

// Orchestrator owns the cadence, backoff and last-forecast state for the process.
type Orchestrator struct {
	cadence     *cadence.Scheduler
	backoff     *backoff.Scheduler
	fetcher     Fetcher
	renderer    Renderer
	brightness  BrightnessSource
	display     Display
	diagnostics DiagnosticsSink
	logger      *slog.Logger

	countRenderFailures bool

	lastForecast weather.Forecast
	lastFetchAt  time.Time
	lastRenderAt time.Time
	lastErr      string
}

func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Cadence == nil:
		return nil, fmt.Errorf("%w: cadence scheduler", errMissingCollaborator)
	case opts.Backoff == nil:
		return nil, fmt.Errorf("%w: backoff scheduler", errMissingCollaborator)
	case opts.Fetcher == nil:
		return nil, fmt.Errorf("%w: fetcher", errMissingCollaborator)
	case opts.Renderer == nil:
		return nil, fmt.Errorf("%w: renderer", errMissingCollaborator)
	case opts.Brightness == nil:
		return nil, fmt.Errorf("%w: brightness source", errMissingCollaborator)
	case opts.Display == nil:
		return nil, fmt.Errorf("%w: display", errMissingCollaborator)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cadence:             opts.Cadence,
		backoff:             opts.Backoff,
		fetcher:             opts.Fetcher,
		renderer:            opts.Renderer,
		brightness:          opts.Brightness,
		display:             opts.Display,
		diagnostics:         opts.Diagnostics,
		logger:              logger,
		countRenderFailures: opts.CountRenderFailures,
	}, nil
}

// RunCycle performs at most one fetch-and-render attempt. ctx is handed to the
// fetcher untouched; the orchestrator itself imposes no deadline.
//
// An exhausted backoff streak bypasses the cadence gate, so the error pattern
// and diagnostics are reasserted on every tick until a fetch succeeds.
func (o *Orchestrator) RunCycle(ctx context.Context, now time.Time) Result {
	if !o.cadence.ShouldRun(now) && !o.backoff.IsExhausted() {
		o.logger.DebugContext(ctx, "update not due",
			"next_in_minutes", o.cadence.MinutesUntilNext(now),
		)
		return Skipped
	}

	o.pushBrightness(ctx, now)

	forecast, err := o.fetcher.Fetch(ctx)
	if err != nil {
		o.lastErr = err.Error()
		return o.recordFailure(ctx, now, err)
	}

	o.lastForecast = forecast.Clone()
	o.lastFetchAt = now

	// A render failure is a display problem, not an upstream one: it leaves
	// both the cadence and the backoff streak untouched.
	if err := o.renderer.Render(forecast); err != nil {
		o.lastErr = err.Error()
		o.logger.ErrorContext(ctx, "render failed", "error", err)
		if o.countRenderFailures {
			// The streak is advanced, but the cycle still reports the failure.
			o.recordFailure(ctx, now, fmt.Errorf("render: %w", err))
		}
		return Failed
	}

	o.backoff.RecordSuccess()
	interval := o.cadence.RecordRun(now)
	o.lastRenderAt = now
	o.lastErr = ""
	o.logger.InfoContext(ctx, "forecast updated",
		"days", len(forecast),
		"next_run_at", o.cadence.NextRunAt(),
		"interval", interval,
		"daytime", o.cadence.IsDaytime(now),
	)
	return Succeeded
}

// recordFailure counts a failure against the streak and runs the error path
// once the streak is exhausted. A failure short of exhaustion yields Succeeded.
func (o *Orchestrator) recordFailure(ctx context.Context, now time.Time, cause error) Result {
	interval := o.backoff.RecordFailure(now)
	if !o.backoff.IsExhausted() {
		o.logger.WarnContext(ctx, "forecast fetch failed; keeping current display",
			"error", cause,
			"attempt", o.backoff.AttemptCount(),
			"state", o.backoff.State(),
			"retry_in", interval,
		)
		return Succeeded
	}

	o.logger.ErrorContext(ctx, "retries exhausted",
		"error", cause,
		"attempt", o.backoff.AttemptCount(),
		"streak_started_at", o.backoff.StreakStartedAt(),
	)
	o.showError(ctx, now, cause)
	return Failed
}

func (o *Orchestrator) showError(ctx context.Context, now time.Time, cause error) {
	if err := o.renderer.RenderErrorPattern(); err != nil {
		o.logger.ErrorContext(ctx, "error pattern render failed", "error", err)
	}

	if o.diagnostics == nil {
		return
	}
	report := DiagnosticReport{
		Timestamp:    now,
		Error:        fmt.Sprintf("%s: %v", retriesExhaustedMessage, cause),
		RetryState:   o.backoff.State(),
		AttemptCount: o.backoff.AttemptCount(),
		LastForecast: o.lastForecast.Clone(),
	}
	if err := o.diagnostics.Write(report); err != nil {
		o.logger.WarnContext(ctx, "failed to write diagnostics", "error", err)
	}
}

func (o *Orchestrator) pushBrightness(ctx context.Context, now time.Time) {
	level := o.brightness.CurrentBrightness(now)
	if err := o.display.SetBrightness(level); err != nil {
		o.logger.WarnContext(ctx, "brightness update failed", "level", level, "error", err)
		return
	}
	o.logger.DebugContext(ctx, "brightness updated", "level", level)
}

// ResetBackoff clears the failure streak without claiming a success.
func (o *Orchestrator) ResetBackoff() {
	o.backoff.Reset()
}
