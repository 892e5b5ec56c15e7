package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrNoForecast is returned when no provider produced usable periods.
var ErrNoForecast = errors.New("no forecast data available")

// Service fetches periods from every configured provider and aggregates them
// into a daily forecast for a single location.
type Service struct {
	location  Location
	providers []Provider
	days      int
	logger    *slog.Logger
}

// NewService creates a new Service. days caps the number of daily summaries
// returned; zero or less means no cap.
func NewService(location Location, providers []Provider, days int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		location:  location,
		providers: providers,
		days:      days,
		logger:    logger,
	}
}

// Fetch queries all providers concurrently and aggregates whatever succeeded.
// It fails only when every provider failed or returned nothing.
func (s *Service) Fetch(ctx context.Context) (Forecast, error) {
	if len(s.providers) == 0 {
		return nil, fmt.Errorf("%w: no weather providers configured", ErrNoForecast)
	}

	var (
		mu      sync.Mutex
		results = make([][]Period, len(s.providers))
		errs    []error
	)

	var g errgroup.Group
	for i, p := range s.providers {
		g.Go(func() error {
			got, err := p.FetchPeriods(ctx, s.location)
			if err != nil {
				// Log and continue; we want partial success when possible.
				s.logger.WarnContext(ctx, "provider fetch failed",
					"provider", p.Name(),
					"location", s.location.Name,
					"error", err,
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				mu.Unlock()
				return nil
			}
			results[i] = got
			return nil
		})
	}
	// Provider errors are collected above, never returned to the group.
	_ = g.Wait()

	// Concatenate in configured order so ties resolve towards earlier providers.
	var periods []Period
	for _, r := range results {
		periods = append(periods, r...)
	}

	forecast := SummarizeDays(periods)
	if len(forecast) == 0 {
		return nil, errors.Join(append([]error{ErrNoForecast}, errs...)...)
	}
	if s.days > 0 && len(forecast) > s.days {
		forecast = forecast[:s.days]
	}

	s.logger.DebugContext(ctx, "forecast aggregated",
		"location", s.location.Name,
		"periods", len(periods),
		"days", len(forecast),
	)
	return forecast, nil
}
