package usecase

import (
	"context"
	"fmt"
	"time"

	"QuietSpike/internal/domain/models"
	drepo "QuietSpike/internal/domain/repository"
)

const (
	BackendStore = "store"
	BackendKafka = "kafka"
)

// BarProcessor routes bars to the configured backend: the store directly,
// or Kafka for a consumer to persist.
type BarProcessor struct {
	pub       drepo.BarPublisher
	store     drepo.BarStore
	series    drepo.SeriesInvalidator
	metrics   drepo.Metrics
	backend   string
	batchSize int
}

// series may be nil; with the kafka backend the consumer invalidates instead.
func NewBarProcessor(pub drepo.BarPublisher, store drepo.BarStore, series drepo.SeriesInvalidator, metrics drepo.Metrics, backend string, batchSize int) *BarProcessor {
	if batchSize < 1 {
		batchSize = 500
	}
	return &BarProcessor{
		pub:       pub,
		store:     store,
		series:    series,
		metrics:   metrics,
		backend:   backend,
		batchSize: batchSize,
	}
}

// Process routes a single bar.
func (p *BarProcessor) Process(ctx context.Context, b models.Bar) error {
	return p.ProcessBatch(ctx, []models.Bar{b})
}

// ProcessBatch validates bars and routes them in chunks of batchSize.
func (p *BarProcessor) ProcessBatch(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			p.metrics.RecordError("process_validate")
			return fmt.Errorf("%s: %w", b.Code, err)
		}
	}

	start := time.Now()
	for lo := 0; lo < len(bars); lo += p.batchSize {
		hi := min(lo+p.batchSize, len(bars))
		if err := p.route(ctx, bars[lo:hi]); err != nil {
			p.metrics.RecordError("process_batch")
			return fmt.Errorf("process batch: %w", err)
		}
		p.metrics.RecordBarsStored(p.backend, hi-lo)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

func (p *BarProcessor) route(ctx context.Context, chunk []models.Bar) error {
	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			return fmt.Errorf("%w: kafka backend without publisher", models.ErrConfiguration)
		}
		return p.pub.PublishBars(ctx, chunk)
	case BackendStore:
		if p.store == nil {
			return fmt.Errorf("%w: store backend without store", models.ErrConfiguration)
		}
		if err := p.store.UpsertBars(ctx, chunk); err != nil {
			return err
		}
		invalidateSeries(ctx, p.series, p.metrics, chunk)
		return nil
	default:
		return fmt.Errorf("%w: unknown backend %q", models.ErrConfiguration, p.backend)
	}
}

// invalidateSeries drops cached series of the written codes. A failure is
// counted but does not fail the write, which already succeeded.
func invalidateSeries(ctx context.Context, series drepo.SeriesInvalidator, metrics drepo.Metrics, bars []models.Bar) {
	if series == nil || len(bars) == 0 {
		return
	}
	codes := make([]string, 0, 1)
	for _, b := range bars {
		if len(codes) == 0 || codes[len(codes)-1] != b.Code {
			codes = append(codes, b.Code)
		}
	}
	if err := series.Invalidate(ctx, codes...); err != nil {
		metrics.RecordError("cache_invalidate")
	}
}

// Close closes the publisher. The store is owned by the caller.
func (p *BarProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
