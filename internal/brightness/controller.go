// Package brightness computes the display brightness for a moment in time.
//
// The base level depends on whether night mode is active (a window that may
// cross midnight, 22:00-06:00 by default). An optional ambient light sensor can
// only lower the base level, and the result is always capped at the hardware
// maximum.
package brightness

import (
	"log/slog"
	"sync"
	"time"
)

const (
	minLevel = 0
	maxLevel = 255
)

// Sensor reads ambient light on the same 0-255 scale.
type Sensor interface {
	ReadAmbient() (int, error)
}

// Config holds the brightness levels and night window, in minutes since midnight.
type Config struct {
	Max        int
	Day        int
	Night      int
	NightStart int
	NightEnd   int
}

// DefaultConfig mirrors the stock hardware settings.
func DefaultConfig() Config {
	return Config{
		Max:        200,
		Day:        150,
		Night:      50,
		NightStart: 22 * 60,
		NightEnd:   6 * 60,
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	Current         int  `json:"current"`
	Day             int  `json:"day"`
	Night           int  `json:"night"`
	Max             int  `json:"max"`
	NightMode       bool `json:"night_mode"`
	HasSensor       bool `json:"has_sensor"`
	LastSensorValue *int `json:"last_sensor_value"`
}

// Controller is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	cfg        Config
	sensor     Sensor
	current    int
	lastSensor *int
	logger     *slog.Logger
}

func NewController(cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Max = clamp(cfg.Max)
	cfg.Day = clamp(cfg.Day)
	cfg.Night = clamp(cfg.Night)
	return &Controller{
		cfg:     cfg,
		current: cfg.Day,
		logger:  logger,
	}
}

// SetSensor installs an ambient sensor; nil removes it.
func (c *Controller) SetSensor(s Sensor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensor = s
}

// IsNightMode reports whether now falls in the night window.
func (c *Controller) IsNightMode(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isNight(now)
}

func (c *Controller) isNight(now time.Time) bool {
	m := now.Hour()*60 + now.Minute()
	start, end := c.cfg.NightStart, c.cfg.NightEnd
	if start > end {
		return m >= start || m < end
	}
	return start <= m && m < end
}

// CurrentBrightness returns the level to apply at now. Sensor errors are
// logged and the base level is used instead.
func (c *Controller) CurrentBrightness(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode, level := "day", c.cfg.Day
	if c.isNight(now) {
		mode, level = "night", c.cfg.Night
	}
	base := level

	if c.sensor != nil {
		v, err := c.sensor.ReadAmbient()
		if err != nil {
			c.logger.Warn("ambient sensor read failed", "error", err)
		} else {
			v = clamp(v)
			c.lastSensor = &v
			level = min(level, v)
		}
	}

	level = min(level, c.cfg.Max)
	if level != c.current {
		c.logger.Info("brightness transition",
			"from", c.current,
			"to", level,
			"mode", mode,
			"base", base,
			"max", c.cfg.Max,
		)
		c.current = level
	}
	return level
}

func (c *Controller) SetMax(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Max = clamp(level)
}

func (c *Controller) SetDay(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Day = clamp(level)
}

func (c *Controller) SetNight(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Night = clamp(level)
}

func (c *Controller) Status(now time.Time) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Current:   c.current,
		Day:       c.cfg.Day,
		Night:     c.cfg.Night,
		Max:       c.cfg.Max,
		NightMode: c.isNight(now),
		HasSensor: c.sensor != nil,
	}
	if c.lastSensor != nil {
		v := *c.lastSensor
		st.LastSensorValue = &v
	}
	return st
}

func clamp(v int) int {
	return max(minLevel, min(maxLevel, v))
}
