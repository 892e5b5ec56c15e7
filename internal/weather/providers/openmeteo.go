package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-display/internal/weather"
)

const openMeteoStepHours = 3

// OpenMeteoProvider implements weather.Provider for the keyless Open-Meteo API.
// Hourly data is thinned to 3-hourly periods to match the other providers.
type OpenMeteoProvider struct {
	endpoint
	days int
}

func NewOpenMeteoProvider(client *http.Client, days int, opts ...Option) *OpenMeteoProvider {
	if days <= 0 {
		days = 4
	}
	return &OpenMeteoProvider{
		endpoint: newEndpoint("openmeteo", "https://api.open-meteo.com/v1/forecast", client, opts...),
		days:     days,
	}
}

func (p *OpenMeteoProvider) FetchPeriods(ctx context.Context, loc weather.Location) ([]weather.Period, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	values.Set("hourly", "temperature_2m,weathercode")
	values.Set("timezone", "auto")
	values.Set("forecast_days", strconv.Itoa(p.days))

	var payload struct {
		UTCOffsetSeconds int `json:"utc_offset_seconds"`
		Hourly           struct {
			Time        []string  `json:"time"`
			Temperature []float64 `json:"temperature_2m"`
			WeatherCode []int     `json:"weathercode"`
		} `json:"hourly"`
	}
	if err := p.getJSON(ctx, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	if len(h.Temperature) != len(h.Time) || len(h.WeatherCode) != len(h.Time) {
		return nil, fmt.Errorf("openmeteo: hourly arrays differ in length")
	}

	zone := time.FixedZone("local", payload.UTCOffsetSeconds)
	periods := make([]weather.Period, 0, len(h.Time)/openMeteoStepHours+1)
	for i, raw := range h.Time {
		ts, err := time.ParseInLocation("2006-01-02T15:04", raw, zone)
		if err != nil || ts.Hour()%openMeteoStepHours != 0 {
			continue
		}
		temp := int(h.Temperature[i])
		code := h.WeatherCode[i]
		periods = append(periods, weather.Period{
			Provider:    p.name,
			Time:        ts,
			WeatherType: openMeteoDescription(code),
			Condition:   mapOpenMeteoCondition(code),
			Temperature: &temp,
		})
	}
	return periods, nil
}

// openMeteoDescription names a WMO weather interpretation code.
func openMeteoDescription(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code == 1 || code == 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code == 61 || code == 80:
		return "Light rain"
	case code == 63 || code == 81:
		return "Rain"
	case code == 65 || code == 82:
		return "Heavy rain"
	case code == 66 || code == 67:
		return "Sleet"
	case code == 71 || code == 73 || code == 77 || code == 85:
		return "Snow"
	case code == 75 || code == 86:
		return "Heavy snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 65) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case code == 66 || code == 67 || (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
