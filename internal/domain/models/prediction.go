package models

import (
	"fmt"
	"math"
	"time"
)

// Direction is the predicted price movement.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// ModelName identifies the model that produced a prediction.
type ModelName string

const (
	ModelRandomForest ModelName = "random_forest"
	ModelHybrid       ModelName = "hybrid"
	ModelSVM          ModelName = "svm"
)

// AllModels lists every model the dashboard knows about, in display order.
var AllModels = []ModelName{ModelRandomForest, ModelHybrid, ModelSVM}

// Probabilities are percentages; Up + Down == 100.
type Probabilities struct {
	Up   float64 `json:"up"`
	Down float64 `json:"down"`
}

// Prediction is the immutable output of one inference cycle.
type Prediction struct {
	Direction     Direction     `json:"direction"`
	Confidence    int           `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
	Model         ModelName     `json:"model"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Clone returns a copy. Prediction holds no reference types, so a value copy suffices.
func (p *Prediction) Clone() *Prediction {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// Validate checks the invariants every stored prediction must satisfy.
func (p *Prediction) Validate() error {
	if p == nil {
		return fmt.Errorf("prediction is nil")
	}
	if p.Direction != DirectionUp && p.Direction != DirectionDown {
		return fmt.Errorf("invalid direction %q", p.Direction)
	}
	if p.Confidence < 70 || p.Confidence >= 100 {
		return fmt.Errorf("confidence %d out of range [70,100)", p.Confidence)
	}
	if p.Probabilities.Up < 0 || p.Probabilities.Down < 0 {
		return fmt.Errorf("negative probability")
	}
	if math.Abs(p.Probabilities.Up+p.Probabilities.Down-100) > 0.05 {
		return fmt.Errorf("probabilities sum to %.2f, want 100", p.Probabilities.Up+p.Probabilities.Down)
	}
	switch p.Model {
	case ModelRandomForest, ModelHybrid, ModelSVM:
	default:
		return fmt.Errorf("unknown model %q", p.Model)
	}
	return nil
}
