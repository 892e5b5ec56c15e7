// Package backoff tracks a streak of consecutive fetch failures and decides how
// long to wait before the next attempt.
//
// A streak ramps through three phases (1m, 5m, 10m by default) and becomes
// exhausted once it has lasted longer than the configured maximum. Exhaustion
// is sticky: it only clears through RecordSuccess or Reset.
package backoff

import (
	"errors"
	"fmt"
	"time"
)

// State is the position of the current failure streak.
type State string

const (
	StateIdle      State = "idle"
	StatePhase1    State = "phase1"
	StatePhase2    State = "phase2"
	StatePhase3    State = "phase3"
	StateExhausted State = "exhausted"
)

func (s State) String() string {
	return string(s)
}

// MarshalText keeps the lowercase tag on the wire.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

var errInvalidConfig = errors.New("invalid backoff configuration")

// Config controls the phase ramp.
type Config struct {
	Phase1Attempts    uint
	Phase2Attempts    uint
	Phase1Interval    time.Duration
	Phase2Interval    time.Duration
	Phase3Interval    time.Duration
	MaxStreakDuration time.Duration
}

// DefaultConfig returns 5 attempts at 1m, 12 at 5m, then 10m until 24h have passed.
func DefaultConfig() Config {
	return Config{
		Phase1Attempts:    5,
		Phase2Attempts:    12,
		Phase1Interval:    1 * time.Minute,
		Phase2Interval:    5 * time.Minute,
		Phase3Interval:    10 * time.Minute,
		MaxStreakDuration: 24 * time.Hour,
	}
}

func (c Config) Validate() error {
	if c.Phase1Interval <= 0 || c.Phase2Interval <= 0 || c.Phase3Interval <= 0 {
		return fmt.Errorf("%w: phase intervals must be positive", errInvalidConfig)
	}
	if c.MaxStreakDuration <= 0 {
		return fmt.Errorf("%w: max streak duration must be positive", errInvalidConfig)
	}
	return nil
}

// Scheduler is the failure streak state machine. It is not safe for
// concurrent use.
type Scheduler struct {
	cfg Config

	state           State
	attemptCount    uint
	streakStartedAt time.Time
	lastFailureAt   time.Time
	lastInterval    time.Duration
}

// New creates an idle Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{cfg: cfg, state: StateIdle}, nil
}

// RecordFailure counts a failure at now and returns the advised wait before the
// next attempt. Once the streak has outlived MaxStreakDuration the state is
// StateExhausted and the returned interval is MaxStreakDuration, meaning stop.
func (s *Scheduler) RecordFailure(now time.Time) time.Duration {
	if s.streakStartedAt.IsZero() {
		s.streakStartedAt = now
	}
	s.attemptCount++
	s.lastFailureAt = now

	elapsed := now.Sub(s.streakStartedAt)
	switch {
	case elapsed > s.cfg.MaxStreakDuration:
		s.state = StateExhausted
		s.lastInterval = s.cfg.MaxStreakDuration
	case s.attemptCount <= s.cfg.Phase1Attempts:
		s.state = StatePhase1
		s.lastInterval = s.cfg.Phase1Interval
	case s.attemptCount <= s.cfg.Phase1Attempts+s.cfg.Phase2Attempts:
		s.state = StatePhase2
		s.lastInterval = s.cfg.Phase2Interval
	default:
		s.state = StatePhase3
		s.lastInterval = s.cfg.Phase3Interval
	}
	return s.lastInterval
}

// RecordSuccess ends the streak.
func (s *Scheduler) RecordSuccess() {
	s.Reset()
}

// Reset clears the streak without implying the upstream recovered.
func (s *Scheduler) Reset() {
	s.state = StateIdle
	s.attemptCount = 0
	s.streakStartedAt = time.Time{}
	s.lastFailureAt = time.Time{}
	s.lastInterval = 0
}

func (s *Scheduler) IsExhausted() bool {
	return s.state == StateExhausted
}

func (s *Scheduler) State() State {
	return s.state
}

func (s *Scheduler) AttemptCount() uint {
	return s.attemptCount
}

// StreakStartedAt is the zero time when no streak is active.
func (s *Scheduler) StreakStartedAt() time.Time {
	return s.streakStartedAt
}

func (s *Scheduler) LastFailureAt() time.Time {
	return s.lastFailureAt
}

// LastInterval is the interval returned by the latest RecordFailure, or zero
// when idle. It is advisory only.
func (s *Scheduler) LastInterval() time.Duration {
	return s.lastInterval
}

func (s *Scheduler) Config() Config {
	return s.cfg
}
