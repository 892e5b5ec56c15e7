// Package cadence decides when the next forecast refresh is due. Refreshes run
// on a short interval during the daytime window and a long one at night.
package cadence

import (
	"errors"
	"fmt"
	"time"
)

var (
	errInvalidClock    = errors.New("invalid time of day")
	errInvalidWindow   = errors.New("daytime start must be before daytime end")
	errInvalidInterval = errors.New("interval must be positive")
)

// Clock is a time of day with minute precision, stored as minutes since midnight.
type Clock int

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", errInvalidClock, s, err)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// MustParseClock is like ParseClock but panics on error. Intended for tests
// and package-level defaults.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// clockOf returns the time of day of t, in t's own location, truncated to the minute.
func clockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Window describes the daytime span and the refresh interval on each side of it.
// Daytime is [DaytimeStart, DaytimeEnd); everything else, including the span
// that crosses midnight, is night.
type Window struct {
	DaytimeStart    Clock
	DaytimeEnd      Clock
	DaytimeInterval time.Duration
	NightInterval   time.Duration
}

// Validate reports whether the window can be scheduled against.
func (w Window) Validate() error {
	if w.DaytimeStart < 0 || w.DaytimeEnd > 24*60 {
		return fmt.Errorf("%w: %s-%s", errInvalidClock, w.DaytimeStart, w.DaytimeEnd)
	}
	if w.DaytimeStart >= w.DaytimeEnd {
		return fmt.Errorf("%w: %s-%s", errInvalidWindow, w.DaytimeStart, w.DaytimeEnd)
	}
	if w.DaytimeInterval <= 0 || w.NightInterval <= 0 {
		return fmt.Errorf("%w: day=%s night=%s", errInvalidInterval, w.DaytimeInterval, w.NightInterval)
	}
	return nil
}

// Scheduler tracks the next due time. It is not safe for concurrent use.
type Scheduler struct {
	window    Window
	nextRunAt time.Time
}

// New creates a Scheduler whose first run is due at now.
func New(window Window, now time.Time) (*Scheduler, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		window:    window,
		nextRunAt: now,
	}, nil
}

// IsDaytime reports whether now falls inside the daytime window. The start
// boundary is inclusive and the end boundary exclusive.
func (s *Scheduler) IsDaytime(now time.Time) bool {
	c := clockOf(now)
	return s.window.DaytimeStart <= c && c < s.window.DaytimeEnd
}

// ShouldRun reports whether a refresh is due. It never changes state.
func (s *Scheduler) ShouldRun(now time.Time) bool {
	return !now.Before(s.nextRunAt)
}

// RecordRun schedules the next refresh using the interval in effect at now and
// returns that interval.
func (s *Scheduler) RecordRun(now time.Time) time.Duration {
	interval := s.window.NightInterval
	if s.IsDaytime(now) {
		interval = s.window.DaytimeInterval
	}
	s.nextRunAt = now.Add(interval)
	return interval
}

// TimeUntilNext returns the time remaining until the next refresh, or zero when
// one is already due.
func (s *Scheduler) TimeUntilNext(now time.Time) time.Duration {
	if d := s.nextRunAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// MinutesUntilNext is TimeUntilNext in whole minutes, rounded down.
func (s *Scheduler) MinutesUntilNext(now time.Time) int {
	return int(s.TimeUntilNext(now) / time.Minute)
}

func (s *Scheduler) NextRunAt() time.Time {
	return s.nextRunAt
}

func (s *Scheduler) Window() Window {
	return s.window
}
