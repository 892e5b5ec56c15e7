package brightness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSensor struct {
	value int
	err   error
}

func (s fixedSensor) ReadAmbient() (int, error) { return s.value, s.err }

func at(hour, min int) time.Time {
	return time.Date(2024, 1, 15, hour, min, 0, 0, time.UTC)
}

func TestNightModeWrapsMidnight(t *testing.T) {
	c := NewController(DefaultConfig(), nil)

	assert.False(t, c.IsNightMode(at(21, 59)))
	assert.True(t, c.IsNightMode(at(22, 0)))
	assert.True(t, c.IsNightMode(at(0, 0)))
	assert.True(t, c.IsNightMode(at(5, 59)))
	assert.False(t, c.IsNightMode(at(6, 0)))
}

func TestNightModeSameDayWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NightStart, cfg.NightEnd = 1*60, 5*60
	c := NewController(cfg, nil)

	assert.False(t, c.IsNightMode(at(0, 30)))
	assert.True(t, c.IsNightMode(at(1, 0)))
	assert.False(t, c.IsNightMode(at(5, 0)))
}

func TestCurrentBrightness(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	assert.Equal(t, 150, c.CurrentBrightness(at(12, 0)))
	assert.Equal(t, 50, c.CurrentBrightness(at(23, 0)))
	assert.Equal(t, 50, c.Status(at(23, 0)).Current)
}

func TestCapApplies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Day = 255
	cfg.Max = 180
	c := NewController(cfg, nil)
	assert.Equal(t, 180, c.CurrentBrightness(at(12, 0)))

	c.SetMax(100)
	assert.Equal(t, 100, c.CurrentBrightness(at(12, 0)))
}

func TestSensorOnlyLowers(t *testing.T) {
	c := NewController(DefaultConfig(), nil)

	c.SetSensor(fixedSensor{value: 80})
	assert.Equal(t, 80, c.CurrentBrightness(at(12, 0)))

	c.SetSensor(fixedSensor{value: 250})
	assert.Equal(t, 150, c.CurrentBrightness(at(12, 0)))

	st := c.Status(at(12, 0))
	assert.True(t, st.HasSensor)
	require.NotNil(t, st.LastSensorValue)
	assert.Equal(t, 250, *st.LastSensorValue)
}

func TestSensorErrorFallsBack(t *testing.T) {
	c := NewController(DefaultConfig(), nil)
	c.SetSensor(fixedSensor{err: errors.New("i2c timeout")})
	assert.Equal(t, 150, c.CurrentBrightness(at(12, 0)))
	assert.Nil(t, c.Status(at(12, 0)).LastSensorValue)
}

func TestLevelsAreClamped(t *testing.T) {
	c := NewController(Config{Max: 999, Day: -4, Night: 300}, nil)
	st := c.Status(at(12, 0))
	assert.Equal(t, 255, st.Max)
	assert.Equal(t, 0, st.Day)
	assert.Equal(t, 255, st.Night)

	c.SetDay(1000)
	c.SetNight(-1)
	st = c.Status(at(12, 0))
	assert.Equal(t, 255, st.Day)
	assert.Equal(t, 0, st.Night)
}
