package scoring

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"FinDash/internal/domain/models"
	"FinDash/internal/domain/service"
)

// RandomOption configures RandomPredictor.
type RandomOption func(*RandomPredictor)

// WithRandomSource sets the random source.
func WithRandomSource(r *rand.Rand) RandomOption {
	return func(p *RandomPredictor) {
		if r != nil {
			p.rng = r
		}
	}
}

// WithRandomClock sets the clock used for prediction timestamps.
func WithRandomClock(c clockwork.Clock) RandomOption {
	return func(p *RandomPredictor) {
		if c != nil {
			p.clock = c
		}
	}
}

// RandomPredictor is the stand-in model: every field of the prediction is drawn at random.
type RandomPredictor struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock clockwork.Clock
}

// NewRandomPredictor creates a RandomPredictor seeded from the current time.
func NewRandomPredictor(opts ...RandomOption) *RandomPredictor {
	p := &RandomPredictor{
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xda3e39cb94b95bdb)),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RandomPredictor) Predict(ctx context.Context, _ *models.Snapshot) (*models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	up := p.rng.IntN(2) == 0
	confidence := 70 + p.rng.IntN(30)
	rawUp, rawDown := p.rng.Float64(), p.rng.Float64()
	model := models.AllModels[p.rng.IntN(len(models.AllModels))]
	p.mu.Unlock()

	direction := models.DirectionDown
	if up {
		direction = models.DirectionUp
	}

	return &models.Prediction{
		Direction:     direction,
		Confidence:    confidence,
		Probabilities: NormalizeProbabilities(rawUp, rawDown),
		Model:         model,
		Timestamp:     p.clock.Now().UTC(),
	}, nil
}

// NormalizeProbabilities scales two raw weights to percentages with one decimal place.
// Down is derived from the rounded Up so the pair always sums to exactly 100.
// Degenerate input yields 50/50.
func NormalizeProbabilities(up, down float64) models.Probabilities {
	total := up + down
	if up < 0 || down < 0 || total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return models.Probabilities{Up: 50, Down: 50}
	}

	hundred := decimal.NewFromInt(100)
	u := decimal.NewFromFloat(up).Div(decimal.NewFromFloat(total)).Mul(hundred).Round(1)
	return models.Probabilities{
		Up:   u.InexactFloat64(),
		Down: hundred.Sub(u).InexactFloat64(),
	}
}

var _ service.Predictor = (*RandomPredictor)(nil)
