package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinDash/internal/domain/models"
	pkgkafka "FinDash/pkg/kafka"
)

type recordingProducer struct {
	topic  string
	msgs   []pkgkafka.Message
	calls  int
	closed bool
}

func (p *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	p.calls++
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *recordingProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaEventSink_PublishBatch(t *testing.T) {
	prod := &recordingProducer{}
	sink := NewKafkaEventSink(prod, "findash.events")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := models.EventRecord{
		ID:        "6f1c0d1e-0000-4000-8000-000000000001",
		Name:      "priceUpdate",
		Timestamp: ts,
		Payload:   json.RawMessage(`{"currentPrice":9140.1}`),
	}
	require.NoError(t, sink.PublishBatch(context.Background(), []models.EventRecord{rec}))

	assert.Equal(t, "findash.events", prod.topic)
	require.Len(t, prod.msgs, 1)
	m := prod.msgs[0]
	assert.Equal(t, []byte("priceUpdate"), m.Key)
	assert.Equal(t, ts, m.Time)
	require.Len(t, m.Headers, 1)
	assert.Equal(t, "event_id", m.Headers[0].Key)
	assert.Equal(t, rec.ID, string(m.Headers[0].Value))

	body, err := json.Marshal(m.Value)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":"6f1c0d1e-0000-4000-8000-000000000001",
		"name":"priceUpdate",
		"timestamp":"2024-03-01T12:00:00Z",
		"payload":{"currentPrice":9140.1}
	}`, string(body))
}

func TestKafkaEventSink_EmptyBatchAndClose(t *testing.T) {
	prod := &recordingProducer{}
	sink := NewKafkaEventSink(prod, "t")

	require.NoError(t, sink.PublishBatch(context.Background(), nil))
	assert.Equal(t, 0, prod.calls)

	require.NoError(t, sink.Close())
	assert.True(t, prod.closed)
}
