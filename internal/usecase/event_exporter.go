package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"FinDash/internal/domain/events"
	"FinDash/internal/domain/models"
	domrepo "FinDash/internal/domain/repository"
	"FinDash/pkg/eventbus"
	applogger "FinDash/pkg/logger"
)

// ExporterOption configures EventExporter.
type ExporterOption func(*EventExporter)

// WithExportBuffer sets how many records may wait for the sink.
func WithExportBuffer(n int) ExporterOption {
	return func(e *EventExporter) {
		if n > 0 {
			e.bufSize = n
		}
	}
}

// WithExportBatch sets the flush size and the max time a partial batch waits.
func WithExportBatch(size int, timeout time.Duration) ExporterOption {
	return func(e *EventExporter) {
		if size > 0 {
			e.batchSize = size
		}
		if timeout > 0 {
			e.batchTimeout = timeout
		}
	}
}

// WithExporterClock sets the clock used for timestamps and batch timeouts.
func WithExporterClock(c clockwork.Clock) ExporterOption {
	return func(e *EventExporter) {
		if c != nil {
			e.clock = c
		}
	}
}

// EventExporter mirrors every bus event to an EventSink.
// The bus handler never blocks: records are buffered and flushed in batches by a
// background goroutine; a full buffer drops the record.
type EventExporter struct {
	sink    domrepo.EventSink
	metrics domrepo.Metrics
	logger  *applogger.Logger
	clock   clockwork.Clock

	bufSize      int
	batchSize    int
	batchTimeout time.Duration

	bufCh   chan models.EventRecord
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
	sub     eventbus.Subscription
	bus     *eventbus.Bus
	stopped sync.Once
}

// NewEventExporter creates an exporter writing to sink.
func NewEventExporter(sink domrepo.EventSink, metrics domrepo.Metrics, logger *applogger.Logger, opts ...ExporterOption) *EventExporter {
	e := &EventExporter{
		sink:         sink,
		metrics:      metrics,
		logger:       logger,
		clock:        clockwork.NewRealClock(),
		bufSize:      1000,
		batchSize:    100,
		batchTimeout: time.Second,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bufCh = make(chan models.EventRecord, e.bufSize)
	return e
}

// Attach subscribes the exporter to every event on bus.
func (e *EventExporter) Attach(bus *eventbus.Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus = bus
	e.sub = bus.SubscribeAll(e.Handle)
}

// Handle converts evt into a record and enqueues it.
func (e *EventExporter) Handle(_ context.Context, evt eventbus.Event) error {
	payload, err := json.Marshal(events.Payload(evt))
	if err != nil {
		e.metrics.RecordError("export_marshal")
		return fmt.Errorf("marshal %s: %w", evt.EventName(), err)
	}

	rec := models.EventRecord{
		ID:        uuid.NewString(),
		Name:      string(evt.EventName()),
		Timestamp: e.clock.Now().UTC(),
		Payload:   payload,
	}

	select {
	case e.bufCh <- rec:
		return nil
	default:
		e.metrics.RecordError("export_buffer_full")
		return fmt.Errorf("export buffer full, dropped %s", rec.Name)
	}
}

// Start launches background flushing.
func (e *EventExporter) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	go e.loop(ctx)
}

// loop runs until Stop. Flushes ignore cancellation of the start context so
// records buffered during shutdown still reach the sink.
func (e *EventExporter) loop(ctx context.Context) {
	defer close(e.doneCh)
	ctx = context.WithoutCancel(ctx)

	batch := make([]models.EventRecord, 0, e.batchSize)
	timer := e.clock.NewTimer(e.batchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		e.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-e.stopCh:
			// drain what is already buffered
			for {
				select {
				case rec := <-e.bufCh:
					batch = append(batch, rec)
					if len(batch) >= e.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case rec := <-e.bufCh:
			batch = append(batch, rec)
			if len(batch) >= e.batchSize {
				flush()
				timer.Reset(e.batchTimeout)
			}
		case <-timer.Chan():
			flush()
			timer.Reset(e.batchTimeout)
		}
	}
}

func (e *EventExporter) flush(ctx context.Context, batch []models.EventRecord) {
	start := e.clock.Now()
	out := make([]models.EventRecord, len(batch))
	copy(out, batch)

	if err := e.sink.PublishBatch(ctx, out); err != nil {
		e.metrics.RecordError("export_flush")
		e.logger.Warn("event export failed",
			applogger.Int("records", len(out)),
			applogger.Error(err),
		)
		return
	}
	e.metrics.RecordLatency("export_flush", e.clock.Since(start).Seconds())
}

// Stop detaches from the bus, flushes buffered records and closes the sink.
func (e *EventExporter) Stop(ctx context.Context) error {
	var err error
	e.stopped.Do(func() { err = e.stop(ctx) })
	return err
}

func (e *EventExporter) stop(ctx context.Context) error {
	e.mu.Lock()
	if e.bus != nil {
		e.bus.Unsubscribe(e.sub)
		e.bus = nil
	}
	started := e.started
	e.started = false
	e.mu.Unlock()

	if started {
		close(e.stopCh)
		select {
		case <-e.doneCh:
		case <-ctx.Done():
			return fmt.Errorf("timeout flushing events: %w", ctx.Err())
		}
	}
	return e.sink.Close()
}
