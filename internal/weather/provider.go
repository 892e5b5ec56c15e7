package weather

import "context"

// Provider abstracts a forecast source (Met Office DataPoint, Open-Meteo, OpenWeatherMap).
type Provider interface {
	Name() string
	FetchPeriods(ctx context.Context, loc Location) ([]Period, error)
}
