package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-display/internal/api/http"
	"github.com/i474232898/weather-display/internal/backoff"
	"github.com/i474232898/weather-display/internal/brightness"
	"github.com/i474232898/weather-display/internal/cadence"
	"github.com/i474232898/weather-display/internal/config"
	"github.com/i474232898/weather-display/internal/cycle"
	"github.com/i474232898/weather-display/internal/diagnostics"
	"github.com/i474232898/weather-display/internal/display"
	"github.com/i474232898/weather-display/internal/scheduler"
	"github.com/i474232898/weather-display/internal/store"
	"github.com/i474232898/weather-display/internal/weather"
	"github.com/i474232898/weather-display/internal/weather/providers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("weather-display exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.Forecast.HTTPTimeout}

	provs, err := buildProviders(cfg, httpClient)
	if err != nil {
		return err
	}
	service := weather.NewService(cfg.Location(), provs, cfg.Forecast.Days, log.With("component", "forecast"))

	panel, err := display.NewPanel(cfg.Display.Driver, cfg.Display.MatrixCount, cfg.Display.CaptureDir)
	if err != nil {
		return fmt.Errorf("create display: %w", err)
	}
	if err := panel.Initialize(); err != nil {
		return fmt.Errorf("initialize display: %w", err)
	}
	defer shutdownPanel(panel, log)

	icons, err := display.LoadIconMap(cfg.Display.IconsFile)
	if err != nil {
		return fmt.Errorf("load icons: %w", err)
	}
	renderer := display.NewRenderer(panel, icons, log.With("component", "renderer"))

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.Display.WatchIcons && cfg.Display.IconsFile != "" {
		if err := display.WatchIconMap(watchCtx, cfg.Display.IconsFile, renderer.SetIcons, log.With("component", "icons")); err != nil {
			log.Warn("icon map hot reload disabled", "path", cfg.Display.IconsFile, "error", err)
		}
	}

	bright := brightness.NewController(cfg.BrightnessConfig(), log.With("component", "brightness"))
	if err := panel.SetBrightness(bright.CurrentBrightness(time.Now())); err != nil {
		log.Warn("initial brightness failed", "error", err)
	}

	window, err := cfg.CadenceWindow()
	if err != nil {
		return fmt.Errorf("cadence window: %w", err)
	}
	cad, err := cadence.New(window, time.Now())
	if err != nil {
		return fmt.Errorf("cadence: %w", err)
	}
	boff, err := backoff.New(cfg.BackoffConfig())
	if err != nil {
		return fmt.Errorf("backoff: %w", err)
	}

	opts := cycle.Options{
		Cadence:             cad,
		Backoff:             boff,
		Fetcher:             service,
		Renderer:            renderer,
		Brightness:          bright,
		Display:             panel,
		Logger:              log.With("component", "cycle"),
		CountRenderFailures: cfg.Backoff.CountRenderFailures,
	}
	if cfg.DiagnosticsDir != "" {
		sink, err := diagnostics.NewFileSink(cfg.DiagnosticsDir, cfg.DiagnosticsMaxFiles, log.With("component", "diagnostics"))
		if err != nil {
			// Diagnostics are best-effort; run without them.
			log.Warn("diagnostics disabled", "dir", cfg.DiagnosticsDir, "error", err)
		} else {
			opts.Diagnostics = sink
		}
	}
	orch, err := cycle.New(opts)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	history := store.NewHistory(cfg.HistoryMaxEntries, cfg.HistoryMaxAge)

	driver, err := scheduler.New(orch, scheduler.Options{
		TickInterval: cfg.Schedule.TickInterval,
		CycleTimeout: cfg.Schedule.CycleTimeout,
		Brightness:   bright,
		History:      history,
		Logger:       log.With("component", "scheduler"),
	})
	if err != nil {
		return err
	}
	if err := driver.Start(); err != nil {
		return err
	}
	defer driver.Stop()

	var app *fiber.App
	if cfg.Port != "" {
		app = newApp(driver, bright, history, cfg.Schedule.CycleTimeout)
		go func() {
			if err := app.Listen(":" + cfg.Port); err != nil {
				log.Error("fiber server stopped", "error", err)
			}
		}()
	}

	log.Info("weather display running",
		"location", cfg.Forecast.LocationName,
		"providers", cfg.Forecast.Providers,
		"display", cfg.Display.Driver,
		"port", cfg.Port,
	)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")

	if app != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("error during shutdown", "error", err)
		}
	}
	return nil
}

func buildProviders(cfg *config.AppConfig, client *http.Client) ([]weather.Provider, error) {
	provs := make([]weather.Provider, 0, len(cfg.Forecast.Providers))
	for _, name := range cfg.Forecast.Providers {
		switch name {
		case config.ProviderOpenMeteo:
			provs = append(provs, providers.NewOpenMeteoProvider(client, cfg.Forecast.Days))
		case config.ProviderOpenWeather:
			provs = append(provs, providers.NewOpenWeatherProvider(client, cfg.Forecast.OpenWeatherAPIKey))
		case config.ProviderMetOffice:
			provs = append(provs, providers.NewMetOfficeProvider(client, cfg.Forecast.MetOfficeAPIKey))
		default:
			return nil, fmt.Errorf("unknown forecast provider %q", name)
		}
	}
	return provs, nil
}

func newApp(driver *scheduler.Driver, bright *brightness.Controller, history *store.History, cycleTimeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-display",
		DisableStartupMessage: true,
		ReadTimeout:           httpTimeout,
		WriteTimeout:          writeTimeout(cycleTimeout),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, driver, bright, history)
	return app
}

const httpTimeout = 10 * time.Second

// writeTimeout leaves room for POST /api/v1/cycle/run, which holds the request
// for a whole cycle. A zero cycle timeout means cycles are unbounded, so
// responses are too.
func writeTimeout(cycleTimeout time.Duration) time.Duration {
	if cycleTimeout <= 0 {
		return 0
	}
	return cycleTimeout + httpTimeout
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// shutdownPanel blanks the matrices and releases the display on exit.
func shutdownPanel(panel display.Panel, log *slog.Logger) {
	if err := panel.Clear(); err != nil {
		log.Warn("display clear failed", "error", err)
	}
	if err := panel.Shutdown(); err != nil {
		log.Warn("display shutdown failed", "error", err)
	}
}
