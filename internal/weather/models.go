package weather

import (
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// ConditionFromText maps a free-text description ("Light rain", "Partly cloudy")
// onto a Condition.
func ConditionFromText(text string) Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ConditionUnknown
	case hasAny(t, "thunder", "storm"):
		return ConditionStorm
	case hasAny(t, "snow", "sleet", "blizzard", "hail"):
		return ConditionSnow
	case hasAny(t, "rain", "shower", "drizzle"):
		return ConditionRain
	case hasAny(t, "mist", "fog", "haze"):
		return ConditionMist
	case hasAny(t, "cloud", "overcast"):
		return ConditionCloudy
	case hasAny(t, "clear", "sunny"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

// hasAny returns true if s contains any of the substrings.
func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Location is the site the display forecasts for.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Period is a single (typically 3-hourly) forecast step from one provider.
type Period struct {
	Provider    string
	Time        time.Time
	WeatherType string
	Condition   Condition
	Temperature *int // whole degrees C; nil when the provider omitted it
}

// DailySummary aggregates one calendar day of periods.
type DailySummary struct {
	Date             time.Time `json:"date"` // noon of the day, in the periods' location
	WeatherType      string    `json:"weather_type"`
	DayWeatherType   string    `json:"day_weather_type"`
	NightWeatherType string    `json:"night_weather_type"`
	Condition        Condition `json:"condition"`
	MaxTemperature   *int      `json:"max_temperature"`
	MinTemperature   *int      `json:"min_temperature"`
	PeriodCount      int       `json:"period_count"`
}

// Forecast is an ordered list of daily summaries, today first.
type Forecast []DailySummary

// Clone returns a deep copy that shares no memory with f.
func (f Forecast) Clone() Forecast {
	if f == nil {
		return nil
	}
	out := make(Forecast, len(f))
	for i, d := range f {
		out[i] = d
		out[i].MaxTemperature = cloneInt(d.MaxTemperature)
		out[i].MinTemperature = cloneInt(d.MinTemperature)
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
