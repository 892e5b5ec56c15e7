package backoff

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	return s
}

func TestNewIsIdle(t *testing.T) {
	s := newScheduler(t)
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.AttemptCount())
	assert.True(t, s.StreakStartedAt().IsZero())
	assert.True(t, s.LastFailureAt().IsZero())
	assert.False(t, s.IsExhausted())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Phase2Interval = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, errInvalidConfig)

	cfg = DefaultConfig()
	cfg.MaxStreakDuration = -time.Hour
	assert.ErrorIs(t, cfg.Validate(), errInvalidConfig)
}

func TestPhaseRamp(t *testing.T) {
	s := newScheduler(t)

	for i := uint(1); i <= 30; i++ {
		now := t0.Add(time.Duration(i-1) * time.Minute)
		interval := s.RecordFailure(now)
		assert.Equal(t, i, s.AttemptCount())

		switch {
		case i <= 5:
			assert.Equal(t, StatePhase1, s.State(), "attempt %d", i)
			assert.Equal(t, time.Minute, interval, "attempt %d", i)
		case i <= 17:
			assert.Equal(t, StatePhase2, s.State(), "attempt %d", i)
			assert.Equal(t, 5*time.Minute, interval, "attempt %d", i)
		default:
			assert.Equal(t, StatePhase3, s.State(), "attempt %d", i)
			assert.Equal(t, 10*time.Minute, interval, "attempt %d", i)
		}
		assert.Equal(t, interval, s.LastInterval())
	}
	assert.Equal(t, t0, s.StreakStartedAt())
}

func TestFirstFailuresThenPhase2(t *testing.T) {
	s := newScheduler(t)

	for i := 0; i < 5; i++ {
		assert.Equal(t, time.Minute, s.RecordFailure(t0.Add(time.Duration(i)*time.Minute)))
		assert.Equal(t, StatePhase1, s.State())
	}
	assert.Equal(t, uint(5), s.AttemptCount())

	assert.Equal(t, 5*time.Minute, s.RecordFailure(t0.Add(5*time.Minute)))
	assert.Equal(t, StatePhase2, s.State())
	assert.Equal(t, uint(6), s.AttemptCount())
}

func TestStreakStartIsSetOnce(t *testing.T) {
	s := newScheduler(t)
	s.RecordFailure(t0)
	s.RecordFailure(t0.Add(time.Hour))
	assert.Equal(t, t0, s.StreakStartedAt())
	assert.Equal(t, t0.Add(time.Hour), s.LastFailureAt())
}

func TestExhaustion(t *testing.T) {
	s := newScheduler(t)
	s.RecordFailure(t0)

	// Exactly at the limit the streak is still alive.
	interval := s.RecordFailure(t0.Add(24 * time.Hour))
	assert.Equal(t, StatePhase1, s.State())
	assert.Equal(t, time.Minute, interval)

	interval = s.RecordFailure(t0.Add(25 * time.Hour))
	assert.Equal(t, StateExhausted, s.State())
	assert.True(t, s.IsExhausted())
	assert.Equal(t, 24*time.Hour, interval)

	// Exhaustion is sticky while failures continue.
	for i := 1; i <= 3; i++ {
		s.RecordFailure(t0.Add(25*time.Hour + time.Duration(i)*time.Minute))
		assert.True(t, s.IsExhausted())
	}
	assert.Equal(t, uint(6), s.AttemptCount())
}

func TestExhaustionIgnoresAttemptCount(t *testing.T) {
	s := newScheduler(t)
	s.RecordFailure(t0)
	s.RecordFailure(t0.Add(25 * time.Hour))
	assert.Equal(t, uint(2), s.AttemptCount())
	assert.Equal(t, StateExhausted, s.State())
}

func TestRecordSuccessResets(t *testing.T) {
	for _, failures := range []int{0, 1, 7, 20} {
		s := newScheduler(t)
		for i := 0; i < failures; i++ {
			s.RecordFailure(t0.Add(time.Duration(i) * time.Minute))
		}
		s.RecordSuccess()
		assert.Equal(t, StateIdle, s.State())
		assert.Zero(t, s.AttemptCount())
		assert.True(t, s.StreakStartedAt().IsZero())
		assert.Zero(t, s.LastInterval())
	}
}

func TestResetClearsExhaustion(t *testing.T) {
	s := newScheduler(t)
	s.RecordFailure(t0)
	s.RecordFailure(t0.Add(25 * time.Hour))
	require.True(t, s.IsExhausted())

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.Zero(t, s.AttemptCount())

	// A new streak starts from the next failure.
	later := t0.Add(30 * time.Hour)
	assert.Equal(t, time.Minute, s.RecordFailure(later))
	assert.Equal(t, later, s.StreakStartedAt())
	assert.Equal(t, StatePhase1, s.State())
}

func TestStateMarshalsLowercase(t *testing.T) {
	b, err := json.Marshal(map[string]State{"s": StateExhausted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"exhausted"}`, string(b))
}
