package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-display/internal/backoff"
	"github.com/i474232898/weather-display/internal/cycle"
	"github.com/i474232898/weather-display/internal/scheduler"
	"github.com/i474232898/weather-display/internal/store"
	"github.com/i474232898/weather-display/internal/weather"
)

type fakeDriver struct {
	status   scheduler.Status
	forecast weather.Forecast
	resets   int
	runs     int
	result   cycle.Result
}

func (d *fakeDriver) Status() scheduler.Status       { return d.status }
func (d *fakeDriver) LastForecast() weather.Forecast { return d.forecast }

func (d *fakeDriver) ResetBackoff() {
	d.resets++
	d.status.Cycle.BackoffState = backoff.StateIdle
}

func (d *fakeDriver) RunOnce(context.Context) cycle.Result {
	d.runs++
	return d.result
}

type fakeBrightness struct {
	max, day, night int
}

func (b *fakeBrightness) SetMax(v int)   { b.max = v }
func (b *fakeBrightness) SetDay(v int)   { b.day = v }
func (b *fakeBrightness) SetNight(v int) { b.night = v }

func newApp(d *fakeDriver, b BrightnessSetter) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, d, b, nil)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func TestHealth(t *testing.T) {
	app := newApp(&fakeDriver{}, nil)
	resp, _ := doRequest(t, app, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	d := &fakeDriver{}
	d.status.Cycle.BackoffState = backoff.StatePhase2
	d.status.Cycle.AttemptCount = 7
	app := newApp(d, nil)

	resp, raw := doRequest(t, app, http.MethodGet, "/api/v1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var got struct {
		Cycle struct {
			BackoffState string `json:"backoff_state"`
			AttemptCount int    `json:"attempt_count"`
		} `json:"cycle"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Cycle.BackoffState != "phase2" || got.Cycle.AttemptCount != 7 {
		t.Fatalf("unexpected status body: %s", raw)
	}
}

func TestForecastNotFoundUntilFetched(t *testing.T) {
	d := &fakeDriver{}
	app := newApp(d, nil)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/forecast", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	d.forecast = weather.Forecast{{WeatherType: "Cloudy"}}
	resp, raw := doRequest(t, app, http.MethodGet, "/api/v1/forecast", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if !strings.Contains(string(raw), `"weather_type":"Cloudy"`) {
		t.Fatalf("unexpected forecast body: %s", raw)
	}
}

func TestResetBackoff(t *testing.T) {
	d := &fakeDriver{}
	d.status.Cycle.BackoffState = backoff.StateExhausted
	app := newApp(d, nil)

	resp, raw := doRequest(t, app, http.MethodPost, "/api/v1/backoff/reset", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if d.resets != 1 {
		t.Fatalf("expected one reset, got %d", d.resets)
	}
	if !strings.Contains(string(raw), `"backoff_state":"idle"`) {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestRunCycle(t *testing.T) {
	d := &fakeDriver{result: cycle.Skipped}
	app := newApp(d, nil)

	_, raw := doRequest(t, app, http.MethodPost, "/api/v1/cycle/run", "")
	if d.runs != 1 {
		t.Fatalf("expected one run, got %d", d.runs)
	}
	if !strings.Contains(string(raw), `"ran":false`) {
		t.Fatalf("unexpected body: %s", raw)
	}
}

// TestBrightnessValidation verifies the 0-255 range and that an empty body is rejected.
func TestBrightnessValidation(t *testing.T) {
	b := &fakeBrightness{}
	app := newApp(&fakeDriver{}, b)

	for _, body := range []string{`{}`, `{"day":300}`, `{"night":-1}`, `not json`} {
		resp, _ := doRequest(t, app, http.MethodPut, "/api/v1/brightness", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected status %d, got %d", body, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp, _ := doRequest(t, app, http.MethodPut, "/api/v1/brightness", `{"day":120,"night":0}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if b.day != 120 || b.night != 0 || b.max != 0 {
		t.Fatalf("unexpected levels: %+v", *b)
	}
}

func TestBrightnessRouteAbsentWithoutSetter(t *testing.T) {
	app := newApp(&fakeDriver{}, nil)
	resp, _ := doRequest(t, app, http.MethodPut, "/api/v1/brightness", `{"day":10}`)
	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected no brightness route, got %d", resp.StatusCode)
	}
}

// TestHistoryRangeValidation verifies that the history endpoint requires an
// ordered from/to pair.
func TestHistoryRangeValidation(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	history := store.NewHistory(10, 0)
	history.Record(store.Entry{At: t0, Result: "ran(ok)", BackoffState: "idle"})

	app := fiber.New()
	RegisterRoutes(app, &fakeDriver{}, nil, history)

	for _, target := range []string{
		"/api/v1/history",
		"/api/v1/history?from=yesterday&to=today",
		"/api/v1/history?from=2024-01-15T13:00:00Z&to=2024-01-15T11:00:00Z",
	} {
		resp, _ := doRequest(t, app, http.MethodGet, target, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp, raw := doRequest(t, app, http.MethodGet, "/api/v1/history?from=2024-01-15T11:00:00Z&to=2024-01-15T13:00:00Z", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if !strings.Contains(string(raw), `"result":"ran(ok)"`) {
		t.Fatalf("unexpected body: %s", raw)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/api/v1/history?from=1000&to=2000", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/api/v1/history/latest", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}
