package usecase

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"FinDash/internal/domain"
	"FinDash/internal/domain/events"
	"FinDash/internal/domain/models"
	domrepo "FinDash/internal/domain/repository"
	"FinDash/internal/domain/service"
	"FinDash/pkg/eventbus"
	applogger "FinDash/pkg/logger"
)

// Publisher is the part of the event bus the store needs.
type Publisher interface {
	Publish(ctx context.Context, evt eventbus.Event)
}

// StoreConfig holds the simulation parameters of the dashboard.
type StoreConfig struct {
	BasePrice         float64
	HistoryJitter     float64
	TickJitter        float64
	HistoryStep       time.Duration
	PredictionLatency time.Duration
	DataPointCount    int
	FeatureCount      int
	Models            map[string]models.ModelMetrics
}

// DefaultStoreConfig returns the stock simulation parameters.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		BasePrice:         9138.90,
		HistoryJitter:     100,
		TickJitter:        5,
		HistoryStep:       30 * time.Second,
		PredictionLatency: 2 * time.Second,
		DataPointCount:    1000,
		FeatureCount:      25,
		Models: map[string]models.ModelMetrics{
			string(models.ModelRandomForest): {Accuracy: 0.87, Precision: 0.85, Recall: 0.88},
			string(models.ModelHybrid):       {Accuracy: 0.91, Precision: 0.90, Recall: 0.89},
			string(models.ModelSVM):          {Accuracy: 0.82, Precision: 0.80, Recall: 0.83},
		},
	}
}

// StoreOption configures DashboardStore.
type StoreOption func(*DashboardStore)

// WithClock sets the clock used for timestamps and the prediction latency.
func WithClock(c clockwork.Clock) StoreOption {
	return func(s *DashboardStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRand sets the random source for history generation and ticks.
func WithRand(r *rand.Rand) StoreOption {
	return func(s *DashboardStore) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithStoreConfig overrides the simulation parameters.
func WithStoreConfig(cfg StoreConfig) StoreOption {
	return func(s *DashboardStore) {
		s.cfg = cfg
	}
}

// DashboardStore owns the current snapshot and the last prediction.
// Mutations are serialized by opMu and publish while holding it, so subscribers observe
// events in mutation order. Reads only take stateMu and are safe from bus handlers.
type DashboardStore struct {
	bus       Publisher
	predictor service.Predictor
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	clock     clockwork.Clock
	rng       *rand.Rand
	cfg       StoreConfig

	busy atomic.Bool
	opMu sync.Mutex

	stateMu    sync.RWMutex
	snapshot   *models.Snapshot
	prediction *models.Prediction
	version    uint64
}

// NewDashboardStore creates an empty store. Call LoadInitialData before serving.
func NewDashboardStore(
	bus Publisher,
	predictor service.Predictor,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
	opts ...StoreOption,
) *DashboardStore {
	s := &DashboardStore{
		bus:       bus,
		predictor: predictor,
		metrics:   metrics,
		logger:    logger,
		clock:     clockwork.NewRealClock(),
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		cfg:       DefaultStoreConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadInitialData builds a fresh snapshot and publishes DataLoaded.
// While another cycle is in flight it does nothing and returns the current snapshot.
func (s *DashboardStore) LoadInitialData(ctx context.Context) (*models.Snapshot, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Debug("load skipped, store busy")
		return s.CurrentSnapshot(), nil
	}
	defer s.busy.Store(false)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	start := s.clock.Now()
	snap, err := s.buildSnapshot()
	if err != nil {
		loadErr := &domain.LoadError{Err: err}
		s.fail(ctx, "load", loadErr)
		return nil, loadErr
	}

	s.stateMu.Lock()
	s.version++
	snap.Version = s.version
	s.snapshot = snap
	out := snap.Clone()
	s.stateMu.Unlock()

	s.metrics.RecordLastPrice(out.CurrentPrice)
	s.metrics.RecordLatency("load", s.clock.Since(start).Seconds())
	s.publish(ctx, events.DataLoaded{Snapshot: out.Clone()})

	s.logger.Info("dashboard data loaded",
		applogger.Float64("price", out.CurrentPrice),
		applogger.Int("points", len(out.PriceHistory)),
	)
	return out, nil
}

// StartPrediction runs one prediction cycle and blocks until it completes.
// It returns (nil, nil) without publishing anything when a cycle is already in flight.
func (s *DashboardStore) StartPrediction(ctx context.Context) (*models.Prediction, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.metrics.RecordPrediction("ignored")
		s.logger.Debug("prediction skipped, store busy")
		return nil, nil
	}
	defer s.busy.Store(false)

	start := s.clock.Now()
	s.opMu.Lock()
	s.publish(ctx, events.PredictionStarted{})
	s.opMu.Unlock()

	pred, err := s.predict(ctx)
	if err != nil {
		predErr := &domain.PredictionError{Err: err}
		s.opMu.Lock()
		s.fail(ctx, "predict", predErr)
		s.opMu.Unlock()
		s.metrics.RecordPrediction("failed")
		return nil, predErr
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	s.prediction = pred.Clone()
	s.stateMu.Unlock()

	s.metrics.RecordPrediction("completed")
	s.metrics.RecordLatency("predict", s.clock.Since(start).Seconds())
	s.publish(ctx, events.PredictionComplete{Prediction: pred.Clone()})

	s.logger.Info("prediction complete",
		applogger.String("direction", string(pred.Direction)),
		applogger.Int("confidence", pred.Confidence),
		applogger.String("model", string(pred.Model)),
	)
	return pred.Clone(), nil
}

func (s *DashboardStore) predict(ctx context.Context) (*models.Prediction, error) {
	if s.cfg.PredictionLatency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(s.cfg.PredictionLatency):
		}
	}

	pred, err := s.predictor.Predict(ctx, s.CurrentSnapshot())
	if err != nil {
		return nil, err
	}
	if err := pred.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prediction: %w", err)
	}
	return pred, nil
}

// Tick moves the price by a bounded random step and publishes PriceUpdate then ChartUpdate.
// Without a loaded snapshot it does nothing.
func (s *DashboardStore) Tick(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stateMu.Lock()
	snap := s.snapshot
	if snap == nil {
		s.stateMu.Unlock()
		return
	}

	prev := snap.CurrentPrice
	next := round(prev+s.uniform(s.cfg.TickJitter), 2)
	if next <= 0 {
		next = prev
	}

	snap.CurrentPrice = next
	snap.PriceChange = round(next-prev, 2)
	snap.PriceChangePercent = percentChange(next-prev, prev)
	snap.PriceHistory = appendBounded(snap.PriceHistory, models.PricePoint{
		Timestamp: s.clock.Now(),
		Price:     next,
	})
	s.version++
	snap.Version = s.version

	update := events.PriceUpdate{
		CurrentPrice:       snap.CurrentPrice,
		PriceChange:        snap.PriceChange,
		PriceChangePercent: snap.PriceChangePercent,
	}
	chart := events.ChartUpdate{PriceHistory: models.ClonePriceHistory(snap.PriceHistory)}
	s.stateMu.Unlock()

	s.metrics.RecordLastPrice(next)
	s.publish(ctx, update)
	s.publish(ctx, chart)
}

// CurrentSnapshot returns a copy of the current snapshot, or nil before the first load.
func (s *DashboardStore) CurrentSnapshot() *models.Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snapshot.Clone()
}

// CurrentPrediction returns a copy of the last prediction, or nil if none completed yet.
func (s *DashboardStore) CurrentPrediction() *models.Prediction {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.prediction.Clone()
}

// IsBusy reports whether a load or prediction cycle is in flight.
func (s *DashboardStore) IsBusy() bool {
	return s.busy.Load()
}

func (s *DashboardStore) buildSnapshot() (*models.Snapshot, error) {
	cfg := s.cfg
	if math.IsNaN(cfg.BasePrice) || math.IsInf(cfg.BasePrice, 0) || cfg.BasePrice <= 0 {
		return nil, fmt.Errorf("invalid base price %v", cfg.BasePrice)
	}
	if cfg.HistoryJitter < 0 || cfg.HistoryJitter >= cfg.BasePrice {
		return nil, fmt.Errorf("history jitter %v must be in [0, base price)", cfg.HistoryJitter)
	}

	now := s.clock.Now()
	history := make([]models.PricePoint, models.MaxHistoryPoints)
	for i := range history {
		price := cfg.BasePrice
		if i < len(history)-1 {
			price = round(cfg.BasePrice+s.uniform(cfg.HistoryJitter), 2)
		}
		history[i] = models.PricePoint{
			Timestamp: now.Add(-time.Duration(len(history)-1-i) * cfg.HistoryStep),
			Price:     price,
		}
	}

	prev := history[len(history)-2].Price
	snap := &models.Snapshot{
		CurrentPrice:       cfg.BasePrice,
		PriceChange:        round(cfg.BasePrice-prev, 2),
		PriceChangePercent: percentChange(cfg.BasePrice-prev, prev),
		DataPointCount:     cfg.DataPointCount,
		FeatureCount:       cfg.FeatureCount,
		PriceHistory:       history,
		Models:             make(map[string]models.ModelMetrics, len(cfg.Models)),
	}
	for name, m := range cfg.Models {
		snap.Models[name] = m
	}
	return snap, nil
}

// uniform draws from [-bound, bound]. Callers hold opMu.
func (s *DashboardStore) uniform(bound float64) float64 {
	if bound <= 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * bound
}

func (s *DashboardStore) publish(ctx context.Context, evt eventbus.Event) {
	s.bus.Publish(ctx, evt)
	s.metrics.RecordEvent(string(evt.EventName()))
}

// fail logs err and publishes it as ErrorOccurred. Callers hold opMu.
func (s *DashboardStore) fail(ctx context.Context, op string, err error) {
	s.logger.Error("dashboard operation failed",
		applogger.String("operation", op),
		applogger.Error(err),
	)
	s.metrics.RecordError(op)
	s.publish(ctx, events.ErrorOccurred{Operation: op, Err: err})
}

func appendBounded(h []models.PricePoint, p models.PricePoint) []models.PricePoint {
	h = append(h, p)
	if over := len(h) - models.MaxHistoryPoints; over > 0 {
		h = append(h[:0:0], h[over:]...)
	}
	return h
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func percentChange(change, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return decimal.NewFromFloat(change).
		Div(decimal.NewFromFloat(prev)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}
