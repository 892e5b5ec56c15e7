package cycle

import (
	"time"

	"github.com/i474232898/weather-display/internal/backoff"
	"github.com/i474232898/weather-display/internal/weather"
)

// DiagnosticReport is written once per exhausted cycle. LastForecast is null
// when no fetch has ever succeeded.
type DiagnosticReport struct {
	Timestamp    time.Time        `json:"timestamp"`
	Error        string           `json:"error"`
	RetryState   backoff.State    `json:"retry_state"`
	AttemptCount uint             `json:"attempt_count"`
	LastForecast weather.Forecast `json:"last_forecast"`
}
