package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-display/internal/weather"
)

// MetOfficeProvider implements weather.Provider for the Met Office DataPoint
// 3-hourly point forecast.
type MetOfficeProvider struct {
	endpoint
	apiKey string
}

func NewMetOfficeProvider(client *http.Client, apiKey string, opts ...Option) *MetOfficeProvider {
	return &MetOfficeProvider{
		endpoint: newEndpoint("metoffice", "https://www.metoffice.gov.uk/services/data/datapoint", client, opts...),
		apiKey:   apiKey,
	}
}

// metOfficeResponse mirrors the parts of a DataPoint SiteRep we read. Each
// period's Rep is a comma-separated list whose third value is the temperature
// and whose last value is the weather type code.
type metOfficeResponse struct {
	SiteRep struct {
		Wx struct {
			Param []struct {
				Name string `json:"name"`
				Desc string `json:"desc"`
				Code string `json:"$"`
			} `json:"Param"`
		} `json:"Wx"`
		DV struct {
			Location struct {
				Period []struct {
					Value string `json:"$"`
					Rep   string `json:"Rep"`
				} `json:"period"`
			} `json:"Location"`
		} `json:"DV"`
	} `json:"SiteRep"`
}

func (p *MetOfficeProvider) FetchPeriods(ctx context.Context, loc weather.Location) ([]weather.Period, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("metoffice: %w", errMissingAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("res", "3hourly")
	u := fmt.Sprintf("%s/forecast_3hourly/point/%s,%s?%s",
		strings.TrimRight(p.baseURL, "/"),
		strconv.FormatFloat(loc.Latitude, 'f', 4, 64),
		strconv.FormatFloat(loc.Longitude, 'f', 4, 64),
		values.Encode(),
	)

	var payload metOfficeResponse
	if err := p.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}

	types := metOfficeWeatherTypes(payload)
	var periods []weather.Period
	for _, raw := range payload.SiteRep.DV.Location.Period {
		ts, ok := parseMetOfficeDate(raw.Value)
		if !ok {
			continue
		}
		periods = append(periods, parseMetOfficeRep(p.name, ts, raw.Rep, types))
	}
	return periods, nil
}

func parseMetOfficeDate(s string) (time.Time, bool) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseMetOfficeRep(provider string, ts time.Time, rep string, types map[int]string) weather.Period {
	values := strings.Split(rep, ",")
	period := weather.Period{
		Provider:    provider,
		Time:        ts,
		WeatherType: "Unknown",
	}

	if code, err := strconv.Atoi(strings.TrimSpace(values[len(values)-1])); err == nil {
		if desc, ok := types[code]; ok {
			period.WeatherType = desc
		} else {
			period.WeatherType = fmt.Sprintf("WeatherCode(%d)", code)
		}
	}
	if len(values) >= 3 {
		if f, err := strconv.ParseFloat(strings.TrimSpace(values[2]), 64); err == nil {
			temp := int(f)
			period.Temperature = &temp
		}
	}
	period.Condition = weather.ConditionFromText(period.WeatherType)
	return period
}

// metOfficeWeatherTypes reads the code table from the response, falling back
// to the published DataPoint codes when the response carries none.
func metOfficeWeatherTypes(resp metOfficeResponse) map[int]string {
	types := make(map[int]string)
	for _, param := range resp.SiteRep.Wx.Param {
		if param.Name != "WeatherType" {
			continue
		}
		if code, err := strconv.Atoi(param.Code); err == nil {
			types[code] = param.Desc
		}
	}
	if len(types) > 0 {
		return types
	}
	return map[int]string{
		0:  "Clear",
		1:  "Partly cloudy",
		2:  "Partly cloudy",
		3:  "Mostly cloudy",
		4:  "Overcast",
		5:  "Overcast",
		6:  "Mist",
		7:  "Fog",
		8:  "Drizzle",
		9:  "Light rain",
		10: "Rain",
		11: "Heavy rain",
		12: "Hail",
		13: "Sleet",
		14: "Snow",
		15: "Heavy snow",
		16: "Thunderstorm",
		17: "Thunderstorm with hail",
		18: "Thunderstorm with snow",
		19: "Hail",
	}
}
