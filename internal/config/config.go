// Package config loads the display's runtime settings from the environment.
//
// Values resolve from the OS environment first and an optional .env file
// second. Any invalid value fails Load; the process is expected to exit.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/weather-display/internal/backoff"
	"github.com/i474232898/weather-display/internal/brightness"
	"github.com/i474232898/weather-display/internal/cadence"
	"github.com/i474232898/weather-display/internal/weather"
)

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrParsing    ConfigErrorType = "PARSING_FAILED"
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
)

// ConfigError is returned by Load.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Provider names accepted in FORECAST_PROVIDERS.
const (
	ProviderOpenMeteo   = "openmeteo"
	ProviderOpenWeather = "openweather"
	ProviderMetOffice   = "metoffice"
)

// AppConfig is populated once at start-up and never modified.
type AppConfig struct {
	Schedule   ScheduleConfig
	Backoff    BackoffConfig
	Forecast   ForecastConfig
	Display    DisplayConfig
	Brightness BrightnessConfig

	DiagnosticsDir      string `envconfig:"DIAGNOSTICS_DIR" default:"/var/lib/weather-display/diagnostics"`
	DiagnosticsMaxFiles int    `envconfig:"DIAGNOSTICS_MAX_FILES" default:"100" validate:"min=0"`

	// In-memory cycle history retention.
	HistoryMaxEntries int           `envconfig:"HISTORY_MAX_ENTRIES" default:"288" validate:"min=0"`
	HistoryMaxAge     time.Duration `envconfig:"HISTORY_MAX_AGE" default:"24h"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	// Port for the status API; empty disables it.
	Port string `envconfig:"PORT" default:"8080"`
}

type ScheduleConfig struct {
	DaytimeStart    string `envconfig:"DAYTIME_START" default:"06:00" validate:"hhmm"`
	DaytimeEnd      string `envconfig:"DAYTIME_END" default:"23:00" validate:"hhmm"`
	DaytimeInterval int    `envconfig:"DAYTIME_INTERVAL_MINUTES" default:"5" validate:"min=1"`
	NightInterval   int    `envconfig:"NIGHT_INTERVAL_MINUTES" default:"60" validate:"min=1"`

	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"1m" validate:"min=1s"`
	CycleTimeout time.Duration `envconfig:"CYCLE_TIMEOUT" default:"30s" validate:"min=1s"`
}

type BackoffConfig struct {
	Phase1Attempts      uint `envconfig:"BACKOFF_PHASE1_ATTEMPTS" default:"5"`
	Phase2Attempts      uint `envconfig:"BACKOFF_PHASE2_ATTEMPTS" default:"12"`
	Phase1Interval      int  `envconfig:"BACKOFF_PHASE1_INTERVAL_MINUTES" default:"1" validate:"min=1"`
	Phase2Interval      int  `envconfig:"BACKOFF_PHASE2_INTERVAL_MINUTES" default:"5" validate:"min=1"`
	Phase3Interval      int  `envconfig:"BACKOFF_PHASE3_INTERVAL_MINUTES" default:"10" validate:"min=1"`
	MaxStreakHours      int  `envconfig:"BACKOFF_MAX_STREAK_HOURS" default:"24" validate:"min=1"`
	CountRenderFailures bool `envconfig:"COUNT_RENDER_FAILURES" default:"false"`
}

type ForecastConfig struct {
	Providers         []string      `envconfig:"FORECAST_PROVIDERS" default:"openmeteo" validate:"min=1,dive,oneof=openmeteo openweather metoffice"`
	MetOfficeAPIKey   string        `envconfig:"METOFFICE_API_KEY"`
	OpenWeatherAPIKey string        `envconfig:"OPENWEATHER_API_KEY"`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"min=1s"`
	Days              int           `envconfig:"FORECAST_DAYS" default:"4" validate:"min=1,max=7"`

	LocationName string  `envconfig:"LOCATION_NAME" default:"London"`
	Latitude     float64 `envconfig:"LOCATION_LATITUDE" default:"51.5074" validate:"min=-90,max=90"`
	Longitude    float64 `envconfig:"LOCATION_LONGITUDE" default:"-0.1278" validate:"min=-180,max=180"`
}

type DisplayConfig struct {
	Driver      string `envconfig:"DISPLAY_DRIVER" default:"memory" validate:"oneof=memory capture"`
	MatrixCount int    `envconfig:"DISPLAY_MATRIX_COUNT" default:"4" validate:"min=1,max=16"`
	CaptureDir  string `envconfig:"FRAME_CAPTURE_DIR" default:"/tmp/weather-display/frames"`
	IconsFile   string `envconfig:"ICONS_FILE" default:"config/icons.yaml"`
	WatchIcons  bool   `envconfig:"ICONS_WATCH" default:"true"`
}

type BrightnessConfig struct {
	Max        int    `envconfig:"BRIGHTNESS_MAX" default:"200" validate:"min=0,max=255"`
	Day        int    `envconfig:"BRIGHTNESS_DAY" default:"150" validate:"min=0,max=255"`
	Night      int    `envconfig:"BRIGHTNESS_NIGHT" default:"50" validate:"min=0,max=255"`
	NightStart string `envconfig:"BRIGHTNESS_NIGHT_START" default:"22:00" validate:"hhmm"`
	NightEnd   string `envconfig:"BRIGHTNESS_NIGHT_END" default:"06:00" validate:"hhmm"`
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (*AppConfig, error) {
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *AppConfig) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("hhmm", validateClock); err != nil {
		return &ConfigError{Type: ErrValidation, Message: "register hhmm validator", Err: err}
	}
	if err := validate.Struct(c); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	if _, err := c.CadenceWindow(); err != nil {
		return &ConfigError{Type: ErrValidation, Message: "invalid daytime window", Err: err}
	}
	if c.Brightness.Day > c.Brightness.Max || c.Brightness.Night > c.Brightness.Max {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("brightness levels must not exceed BRIGHTNESS_MAX (%d)", c.Brightness.Max),
		}
	}

	providers := c.Forecast.Providers
	if slices.Contains(providers, ProviderMetOffice) && c.Forecast.MetOfficeAPIKey == "" {
		return &ConfigError{Type: ErrValidation, Message: "METOFFICE_API_KEY is required for the metoffice provider"}
	}
	if slices.Contains(providers, ProviderOpenWeather) && c.Forecast.OpenWeatherAPIKey == "" {
		return &ConfigError{Type: ErrValidation, Message: "OPENWEATHER_API_KEY is required for the openweather provider"}
	}
	if c.Display.Driver == "capture" && strings.TrimSpace(c.Display.CaptureDir) == "" {
		return &ConfigError{Type: ErrValidation, Message: "FRAME_CAPTURE_DIR is required for the capture driver"}
	}
	return nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := cadence.ParseClock(fl.Field().String())
	return err == nil
}

// CadenceWindow builds the daytime window.
func (c *AppConfig) CadenceWindow() (cadence.Window, error) {
	start, err := cadence.ParseClock(c.Schedule.DaytimeStart)
	if err != nil {
		return cadence.Window{}, err
	}
	end, err := cadence.ParseClock(c.Schedule.DaytimeEnd)
	if err != nil {
		return cadence.Window{}, err
	}
	w := cadence.Window{
		DaytimeStart:    start,
		DaytimeEnd:      end,
		DaytimeInterval: time.Duration(c.Schedule.DaytimeInterval) * time.Minute,
		NightInterval:   time.Duration(c.Schedule.NightInterval) * time.Minute,
	}
	return w, w.Validate()
}

func (c *AppConfig) BackoffConfig() backoff.Config {
	return backoff.Config{
		Phase1Attempts:    c.Backoff.Phase1Attempts,
		Phase2Attempts:    c.Backoff.Phase2Attempts,
		Phase1Interval:    time.Duration(c.Backoff.Phase1Interval) * time.Minute,
		Phase2Interval:    time.Duration(c.Backoff.Phase2Interval) * time.Minute,
		Phase3Interval:    time.Duration(c.Backoff.Phase3Interval) * time.Minute,
		MaxStreakDuration: time.Duration(c.Backoff.MaxStreakHours) * time.Hour,
	}
}

// BrightnessConfig assumes Validate has passed.
func (c *AppConfig) BrightnessConfig() brightness.Config {
	start, _ := cadence.ParseClock(c.Brightness.NightStart)
	end, _ := cadence.ParseClock(c.Brightness.NightEnd)
	return brightness.Config{
		Max:        c.Brightness.Max,
		Day:        c.Brightness.Day,
		Night:      c.Brightness.Night,
		NightStart: int(start),
		NightEnd:   int(end),
	}
}

func (c *AppConfig) Location() weather.Location {
	return weather.Location{
		Name:      c.Forecast.LocationName,
		Latitude:  c.Forecast.Latitude,
		Longitude: c.Forecast.Longitude,
	}
}
