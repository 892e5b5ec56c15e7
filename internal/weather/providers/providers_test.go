package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-display/internal/weather"
)

var site = weather.Location{Name: "exeter", Latitude: 50.7, Longitude: -3.5}

var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
}

func serveJSON(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMetOfficeFetchPeriods(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{
			"SiteRep": {
				"Wx": {"Param": [
					{"name": "WeatherType", "desc": "Sunny day", "$": "1"},
					{"name": "WeatherType", "desc": "Heavy rain", "$": "15"}
				]},
				"DV": {"Location": {"period": [
					{"$": "2024-01-15T09:00:00Z", "Rep": "270,10,7.5,0,5,1008,15,1"},
					{"$": "2024-01-15T21:00:00Z", "Rep": "270,10,4,0,5,1008,15,15"},
					{"$": "not-a-date", "Rep": "1"},
					{"$": "2024-01-16Z", "Rep": "99"}
				]}}
			}
		}`))
	}))
	defer srv.Close()

	p := NewMetOfficeProvider(srv.Client(), "secret", WithBaseURL(srv.URL), WithBackoff(fastBackoff))
	assert.Equal(t, "metoffice", p.Name())

	periods, err := p.FetchPeriods(context.Background(), site)
	require.NoError(t, err)
	assert.Equal(t, "/forecast_3hourly/point/50.7000,-3.5000", gotPath)
	assert.Equal(t, "secret", gotKey)

	require.Len(t, periods, 3)
	assert.Equal(t, "Sunny day", periods[0].WeatherType)
	assert.Equal(t, weather.ConditionClear, periods[0].Condition)
	require.NotNil(t, periods[0].Temperature)
	assert.Equal(t, 7, *periods[0].Temperature)

	assert.Equal(t, "Heavy rain", periods[1].WeatherType)
	assert.Equal(t, weather.ConditionRain, periods[1].Condition)

	assert.Equal(t, "WeatherCode(99)", periods[2].WeatherType)
	assert.Nil(t, periods[2].Temperature)
}

func TestMetOfficeFallbackCodes(t *testing.T) {
	srv := serveJSON(t, `{"SiteRep": {"DV": {"Location": {"period": [
		{"$": "2024-01-15T12:00:00Z", "Rep": "0,0,3,0,0,0,0,14"}
	]}}}}`)

	p := NewMetOfficeProvider(srv.Client(), "k", WithBaseURL(srv.URL))
	periods, err := p.FetchPeriods(context.Background(), site)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "Snow", periods[0].WeatherType)
}

func TestMetOfficeRequiresKey(t *testing.T) {
	p := NewMetOfficeProvider(http.DefaultClient, "")
	_, err := p.FetchPeriods(context.Background(), site)
	assert.ErrorIs(t, err, errMissingAPIKey)
}

func TestOpenMeteoThinsToThreeHourly(t *testing.T) {
	srv := serveJSON(t, `{
		"utc_offset_seconds": 3600,
		"hourly": {
			"time": ["2024-01-15T00:00", "2024-01-15T01:00", "2024-01-15T02:00", "2024-01-15T03:00"],
			"temperature_2m": [1.2, 1.0, 0.5, -0.4],
			"weathercode": [0, 0, 0, 63]
		}
	}`)

	p := NewOpenMeteoProvider(srv.Client(), 2, WithBaseURL(srv.URL))
	periods, err := p.FetchPeriods(context.Background(), site)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.Equal(t, "Clear", periods[0].WeatherType)
	assert.Equal(t, weather.ConditionClear, periods[0].Condition)
	assert.Equal(t, 1, *periods[0].Temperature)
	_, offset := periods[0].Time.Zone()
	assert.Equal(t, 3600, offset)

	assert.Equal(t, "Rain", periods[1].WeatherType)
	assert.Equal(t, 3, periods[1].Time.Hour())
}

func TestOpenMeteoRejectsRaggedArrays(t *testing.T) {
	srv := serveJSON(t, `{"hourly": {"time": ["2024-01-15T00:00"], "temperature_2m": [], "weathercode": [0]}}`)

	p := NewOpenMeteoProvider(srv.Client(), 1, WithBaseURL(srv.URL))
	_, err := p.FetchPeriods(context.Background(), site)
	assert.Error(t, err)
}

func TestOpenWeatherFetchPeriods(t *testing.T) {
	srv := serveJSON(t, `{
		"city": {"timezone": 0},
		"list": [
			{"dt": 1705312800, "main": {"temp": 6.6}, "weather": [{"main": "Clouds", "description": "broken clouds"}]},
			{"dt": 1705323600, "main": {"temp": 2.2}, "weather": []}
		]
	}`)

	p := NewOpenWeatherProvider(srv.Client(), "k", WithBaseURL(srv.URL))
	periods, err := p.FetchPeriods(context.Background(), site)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.Equal(t, "Broken clouds", periods[0].WeatherType)
	assert.Equal(t, weather.ConditionCloudy, periods[0].Condition)
	assert.Equal(t, 7, *periods[0].Temperature)
	assert.Equal(t, "Unknown", periods[1].WeatherType)
	assert.Equal(t, weather.ConditionUnknown, periods[1].Condition)
}

func TestResilienceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"hourly": {"time": [], "temperature_2m": [], "weathercode": []}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), 1, WithBaseURL(srv.URL), WithBackoff(fastBackoff))
	periods, err := p.FetchPeriods(context.Background(), site)
	require.NoError(t, err)
	assert.Empty(t, periods)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResilienceGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), 1, WithBaseURL(srv.URL), WithBackoff(fastBackoff))
	_, err := p.FetchPeriods(context.Background(), site)
	assert.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, int32(fastBackoff.MaxRetries+1), calls.Load())
}

func TestResilienceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "bad", WithBaseURL(srv.URL), WithBackoff(fastBackoff))
	_, err := p.FetchPeriods(context.Background(), site)
	assert.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResilienceHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewOpenMeteoProvider(http.DefaultClient, 1)
	_, err := p.FetchPeriods(ctx, site)
	assert.ErrorIs(t, err, context.Canceled)
}
