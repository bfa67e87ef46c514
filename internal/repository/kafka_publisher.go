package repository

import (
	"context"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/domain/repository"
	pkgkafka "QuietSpike/pkg/kafka"
)

// KafkaPublisher sends bars and signals keyed by symbol code, so one
// symbol's messages stay ordered on one partition.
type KafkaPublisher struct {
	producer     *pkgkafka.Producer
	barsTopic    string
	signalsTopic string
}

var (
	_ repository.BarPublisher    = (*KafkaPublisher)(nil)
	_ repository.SignalPublisher = (*KafkaPublisher)(nil)
)

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, barsTopic, signalsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, barsTopic: barsTopic, signalsTopic: signalsTopic}
}

func (p *KafkaPublisher) PublishBars(ctx context.Context, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(bars))
	for i, b := range bars {
		msgs[i] = pkgkafka.Message{Key: []byte(b.Code), Value: b}
	}
	return p.producer.PublishBatch(ctx, p.barsTopic, msgs)
}

func (p *KafkaPublisher) PublishSignals(ctx context.Context, signals []models.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(signals))
	for i, s := range signals {
		msgs[i] = pkgkafka.Message{Key: []byte(s.Code), Value: s}
	}
	return p.producer.PublishBatch(ctx, p.signalsTopic, msgs)
}

// PublishMessage lets the log collector ship aggregated entries.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
