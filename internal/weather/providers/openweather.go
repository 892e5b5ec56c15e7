package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-display/internal/weather"
)

// OpenWeatherProvider implements weather.Provider using the OpenWeatherMap
// 5 day / 3 hour forecast.
type OpenWeatherProvider struct {
	endpoint
	apiKey string
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		endpoint: newEndpoint("openweathermap", "https://api.openweathermap.org/data/2.5/forecast", client, opts...),
		apiKey:   apiKey,
	}
}

func (p *OpenWeatherProvider) FetchPeriods(ctx context.Context, loc weather.Location) ([]weather.Period, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	values.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	values.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))

	var payload struct {
		City struct {
			Timezone int `json:"timezone"`
		} `json:"city"`
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Weather []openWeatherItem `json:"weather"`
		} `json:"list"`
	}
	if err := p.getJSON(ctx, fmt.Sprintf("%s?%s", p.baseURL, values.Encode()), &payload); err != nil {
		return nil, err
	}

	zone := time.FixedZone("local", payload.City.Timezone)
	periods := make([]weather.Period, 0, len(payload.List))
	for _, item := range payload.List {
		if item.Dt == 0 {
			continue
		}
		temp := int(math.Round(item.Main.Temp))
		periods = append(periods, weather.Period{
			Provider:    p.name,
			Time:        time.Unix(item.Dt, 0).In(zone),
			WeatherType: openWeatherDescription(item.Weather),
			Condition:   mapOpenWeatherCondition(item.Weather),
			Temperature: &temp,
		})
	}
	return periods, nil
}

type openWeatherItem struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

func openWeatherDescription(items []openWeatherItem) string {
	if len(items) == 0 || items[0].Description == "" {
		return "Unknown"
	}
	d := items[0].Description
	return strings.ToUpper(d[:1]) + d[1:]
}

func mapOpenWeatherCondition(items []openWeatherItem) weather.Condition {
	if len(items) == 0 {
		return weather.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
