package service

import (
	"context"

	"FinDash/internal/domain/models"
)

// Predictor produces a direction prediction for the current market state.
// The default implementation is randomized; production deployments point it at a scoring service.
type Predictor interface {
	Predict(ctx context.Context, snap *models.Snapshot) (*models.Prediction, error)
}
