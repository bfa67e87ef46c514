package repository

import (
	"context"
	"time"

	"QuietSpike/internal/domain/models"
)

// MarketData is the upstream daily-bar provider.
type MarketData interface {
	FetchDaily(ctx context.Context, code string, start, end time.Time) ([]models.Bar, error)
	FetchUniverse(ctx context.Context) ([]models.Symbol, error)
}

// SeriesProvider returns a validated series for one symbol.
type SeriesProvider interface {
	Series(ctx context.Context, code string, start, end time.Time) (*models.Series, error)
}

// SeriesInvalidator drops cached series of codes once their bars change.
type SeriesInvalidator interface {
	Invalidate(ctx context.Context, codes ...string) error
}

// UniverseSource lists the symbols to screen.
type UniverseSource interface {
	Symbols(ctx context.Context) ([]models.Symbol, error)
}

// BarStore persists bars keyed by date_code with upsert semantics.
type BarStore interface {
	Init(ctx context.Context) error
	UpsertBars(ctx context.Context, bars []models.Bar) error
	QueryBars(ctx context.Context, code string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalStore persists screening signals keyed by date_code.
type SignalStore interface {
	UpsertSignals(ctx context.Context, signals []models.Signal) error
}

// Store is a backend holding both bars and signals.
type Store interface {
	BarStore
	SignalStore
}

// BarPublisher fans bars out to a message bus.
type BarPublisher interface {
	PublishBars(ctx context.Context, bars []models.Bar) error
	Close() error
}

// SignalPublisher announces screening signals.
type SignalPublisher interface {
	PublishSignals(ctx context.Context, signals []models.Signal) error
}

type Metrics interface {
	RecordEvaluation(strategy, outcome string)
	RecordSkip(kind string)
	RecordBarsStored(backend string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
