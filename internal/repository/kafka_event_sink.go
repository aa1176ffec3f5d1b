package repository

import (
	"context"

	"github.com/segmentio/kafka-go"

	"FinDash/internal/domain/models"
	"FinDash/internal/domain/repository"
	pkgkafka "FinDash/pkg/kafka"
)

// BatchProducer is implemented by *pkgkafka.Producer.
type BatchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaEventSink implements EventSink for Kafka. Records are keyed by event name so
// one partition carries a given event type in order.
type KafkaEventSink struct {
	producer BatchProducer
	topic    string
}

// NewKafkaEventSink creates Kafka event sink.
func NewKafkaEventSink(producer BatchProducer, topic string) repository.EventSink {
	return &KafkaEventSink{producer: producer, topic: topic}
}

func (s *KafkaEventSink) PublishBatch(ctx context.Context, records []models.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(r.Name),
			Value:   r,
			Headers: []kafka.Header{{Key: "event_id", Value: []byte(r.ID)}},
			Time:    r.Timestamp,
		}
	}
	return s.producer.PublishBatch(ctx, s.topic, msgs)
}

func (s *KafkaEventSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
