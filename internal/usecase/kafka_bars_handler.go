package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"QuietSpike/internal/domain/models"
	drepo "QuietSpike/internal/domain/repository"
	pkgkafka "QuietSpike/pkg/kafka"
)

// KafkaBarsHandler consumes bar messages and upserts them into the store.
type KafkaBarsHandler struct {
	topic   string
	store   drepo.BarStore
	series  drepo.SeriesInvalidator
	metrics drepo.Metrics
}

func NewKafkaBarsHandler(topic string, store drepo.BarStore, series drepo.SeriesInvalidator, metrics drepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, store: store, series: series, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// Handle expects one JSON encoded models.Bar per message. Upserts are
// idempotent so redelivery is harmless.
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var bar models.Bar
	if err := json.Unmarshal(b, &bar); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode bar: %w", err)
	}
	if bar.Code == "" || bar.Date.IsZero() {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("%w: bar without code or date", models.ErrInvalidBar)
	}
	if err := bar.Validate(); err != nil {
		h.metrics.RecordError("consumer_validate")
		return err
	}

	start := time.Now()
	err := h.store.UpsertBars(ctx, []models.Bar{bar})
	h.metrics.RecordLatency("store_upsert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordBarsStored("consumer", 1)
	invalidateSeries(ctx, h.series, h.metrics, []models.Bar{bar})
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
