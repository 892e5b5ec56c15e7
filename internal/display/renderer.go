package display

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/i474232898/weather-display/internal/weather"
)

var errEmptyForecast = errors.New("cannot render empty forecast")

// eveningHour is when today's matrix switches from the daytime high to the
// overnight low.
const eveningHour = 18

// Renderer turns a forecast into one bitmap per matrix: matrix 0 shows today,
// the following matrices the next days.
type Renderer struct {
	panel Panel

	mu    sync.RWMutex
	icons *IconMap

	now    func() time.Time
	logger *slog.Logger
}

// RendererOption customises a Renderer.
type RendererOption func(*Renderer)

// WithClock overrides the clock used to choose between today's high and low.
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) {
		r.now = now
	}
}

func NewRenderer(panel Panel, icons *IconMap, logger *slog.Logger, opts ...RendererOption) *Renderer {
	if icons == nil {
		icons = &IconMap{Mappings: map[string]int{}}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{
		panel:  panel,
		icons:  icons,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetIcons swaps the icon mapping used by later renders. A nil map is ignored.
func (r *Renderer) SetIcons(icons *IconMap) {
	if icons == nil {
		return
	}
	r.mu.Lock()
	r.icons = icons
	r.mu.Unlock()
}

// Render draws the forecast. Days beyond the matrix count are dropped and
// matrices without a day are blanked.
func (r *Renderer) Render(forecast weather.Forecast) error {
	if len(forecast) == 0 {
		return errEmptyForecast
	}

	bitmaps := make([]Bitmap, r.panel.MatrixCount())
	for i := range bitmaps {
		if i >= len(forecast) {
			continue
		}
		bitmaps[i] = r.renderDay(forecast[i], i == 0)
	}

	if err := r.panel.RenderAll(bitmaps); err != nil {
		return fmt.Errorf("render forecast: %w", err)
	}
	r.logger.Debug("rendered forecast", "matrices", len(bitmaps), "days", len(forecast))
	return nil
}

// RenderErrorPattern shows the error X on every matrix.
func (r *Renderer) RenderErrorPattern() error {
	bitmaps := make([]Bitmap, r.panel.MatrixCount())
	for i := range bitmaps {
		bitmaps[i] = ErrorPattern()
	}
	if err := r.panel.RenderAll(bitmaps); err != nil {
		return fmt.Errorf("render error pattern: %w", err)
	}
	return nil
}

func (r *Renderer) renderDay(day weather.DailySummary, today bool) Bitmap {
	temp, weatherType := day.MaxTemperature, day.DayWeatherType
	if today && r.now().Hour() >= eveningHour {
		temp, weatherType = day.MinTemperature, day.NightWeatherType
	}
	if weatherType == "" || weatherType == "Unknown" {
		weatherType = day.WeatherType
	}

	r.mu.RLock()
	iconID, mapped := r.icons.Lookup(weatherType)
	r.mu.RUnlock()
	if !mapped {
		r.logger.Warn("weather type not mapped; using fallback icon",
			"weather_type", weatherType,
			"icon", iconID,
		)
	}

	var b Bitmap
	drawIcon(&b, iconID)
	if temp != nil {
		drawTemperature(&b, *temp)
	}
	return b
}

// drawIcon fills the top six rows with a checkerboard whose intensity encodes the icon id.
func drawIcon(b *Bitmap, iconID int) {
	level := iconID * 25
	if level > 255 {
		level = 255
	}
	if level <= 0 {
		return
	}
	for y := 0; y < MatrixHeight-2; y++ {
		for x := 0; x < MatrixWidth; x++ {
			if (x+y)%2 == 0 {
				b.Set(x, y, uint8(level))
			}
		}
	}
}

// drawTemperature lights one bottom-row pixel per 5 degrees above -10C.
// Sub-zero temperatures are drawn dimmer.
func drawTemperature(b *Bitmap, celsius int) {
	n := (celsius + 10) / 5
	if n < 0 {
		n = 0
	}
	if n > MatrixWidth {
		n = MatrixWidth
	}
	level := uint8(255)
	if celsius < 0 {
		level = 96
	}
	for x := 0; x < n; x++ {
		b.Set(x, MatrixHeight-1, level)
	}
}
