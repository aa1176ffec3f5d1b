package repository

import (
	"context"

	"FinDash/internal/domain/models"
)

// EventSink ships exported dashboard events to an external system.
type EventSink interface {
	PublishBatch(ctx context.Context, records []models.EventRecord) error
	Close() error
}

type Metrics interface {
	RecordEvent(name string)
	RecordError(kind string)
	RecordLastPrice(price float64)
	RecordLatency(op string, seconds float64)
	RecordPrediction(result string)
	SetSubscribers(n int)
	RecordDelivery(msgType string, ok bool)
}
