package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinDash/internal/domain/events"
	"FinDash/internal/domain/models"
	"FinDash/pkg/eventbus"
	applogger "FinDash/pkg/logger"
	"FinDash/pkg/metrics"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]models.EventRecord
	closed  bool
	err     error
}

func (s *memorySink) PublishBatch(ctx context.Context, records []models.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.batches = append(s.batches, records)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) records() []models.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EventRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func (s *memorySink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestEventExporter_FlushesOnBatchSize(t *testing.T) {
	sink := &memorySink{}
	clock := clockwork.NewFakeClock()
	exp := NewEventExporter(sink, metrics.Noop{}, applogger.Nop(),
		WithExportBatch(2, time.Hour),
		WithExporterClock(clock),
	)
	exp.Start(context.Background())
	t.Cleanup(func() { _ = exp.Stop(context.Background()) })

	require.NoError(t, exp.Handle(context.Background(), events.PriceUpdate{CurrentPrice: 1}))
	require.NoError(t, exp.Handle(context.Background(), events.PriceUpdate{CurrentPrice: 2}))

	require.Eventually(t, func() bool { return sink.batchCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, sink.records(), 2)
}

func TestEventExporter_FlushesOnTimeout(t *testing.T) {
	sink := &memorySink{}
	clock := clockwork.NewFakeClock()
	exp := NewEventExporter(sink, metrics.Noop{}, applogger.Nop(),
		WithExportBatch(100, time.Second),
		WithExporterClock(clock),
	)
	exp.Start(context.Background())
	t.Cleanup(func() { _ = exp.Stop(context.Background()) })

	require.NoError(t, exp.Handle(context.Background(), events.PredictionStarted{}))

	assert.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return len(sink.records()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEventExporter_FlushesAfterStartContextCancelled(t *testing.T) {
	sink := &memorySink{}
	clock := clockwork.NewFakeClock()
	exp := NewEventExporter(sink, metrics.Noop{}, applogger.Nop(),
		WithExportBatch(100, time.Second),
		WithExporterClock(clock),
	)
	ctx, cancel := context.WithCancel(context.Background())
	exp.Start(ctx)
	// shutdown cancels the run context before the exporter is stopped
	cancel()

	require.NoError(t, exp.Handle(context.Background(), events.PredictionComplete{}))
	assert.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return len(sink.records()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, exp.Handle(context.Background(), events.PriceUpdate{CurrentPrice: 9140}))
	require.NoError(t, exp.Stop(context.Background()))

	recs := sink.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "predictionComplete", recs[0].Name)
	assert.Equal(t, "priceUpdate", recs[1].Name)
}

func TestEventExporter_StopDrainsAndClosesSink(t *testing.T) {
	sink := &memorySink{}
	bus := eventbus.New()
	exp := NewEventExporter(sink, metrics.Noop{}, applogger.Nop(),
		WithExportBatch(100, time.Hour),
		WithExporterClock(clockwork.NewFakeClock()),
	)
	exp.Attach(bus)
	exp.Start(context.Background())

	bus.Publish(context.Background(), events.PriceUpdate{CurrentPrice: 9140.25, PriceChange: 1.35})
	bus.Publish(context.Background(), events.ErrorOccurred{Operation: "predict", Err: errors.New("model down")})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, exp.Stop(ctx))

	recs := sink.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "priceUpdate", recs[0].Name)
	assert.NotEmpty(t, recs[0].ID)

	var price events.PriceUpdate
	require.NoError(t, json.Unmarshal(recs[0].Payload, &price))
	assert.Equal(t, 9140.25, price.CurrentPrice)

	var errPayload events.ErrorPayload
	require.NoError(t, json.Unmarshal(recs[1].Payload, &errPayload))
	assert.Equal(t, events.ErrorPayload{Operation: "predict", Message: "model down"}, errPayload)

	assert.True(t, sink.closed)

	// detached from the bus
	bus.Publish(context.Background(), events.PriceUpdate{})
	assert.Len(t, sink.records(), 2)
	assert.NoError(t, exp.Stop(context.Background()))
}

func TestEventExporter_FullBufferDrops(t *testing.T) {
	sink := &memorySink{}
	exp := NewEventExporter(sink, metrics.Noop{}, applogger.Nop(), WithExportBuffer(1))

	// not started: nothing drains the buffer
	require.NoError(t, exp.Handle(context.Background(), events.PredictionStarted{}))
	assert.Error(t, exp.Handle(context.Background(), events.PredictionStarted{}))

	require.NoError(t, exp.Stop(context.Background()))
	assert.True(t, sink.closed)
}

func TestEventExporter_SinkFailureKeepsRunning(t *testing.T) {
	sink := &memorySink{err: errors.New("broker unreachable")}
	exp := NewEventExporter(sink, metrics.Noop{}, applogger.Nop(), WithExportBatch(1, time.Hour))
	exp.Start(context.Background())

	require.NoError(t, exp.Handle(context.Background(), events.PredictionStarted{}))
	time.Sleep(20 * time.Millisecond)

	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()

	require.NoError(t, exp.Handle(context.Background(), events.PredictionStarted{}))
	require.Eventually(t, func() bool { return len(sink.records()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, exp.Stop(context.Background()))
}
