package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinDash/internal/domain/models"
	"FinDash/pkg/eventbus"
)

func TestEventNames(t *testing.T) {
	variants := []eventbus.Event{
		DataLoaded{},
		PredictionStarted{},
		PredictionComplete{},
		PriceUpdate{},
		ChartUpdate{},
		ErrorOccurred{},
	}
	require.Len(t, variants, len(All))
	for i, v := range variants {
		assert.Equal(t, All[i], v.EventName())
	}
}

func TestPayload(t *testing.T) {
	snap := &models.Snapshot{CurrentPrice: 9138.9}
	pred := &models.Prediction{Direction: models.DirectionDown}

	assert.Same(t, snap, Payload(DataLoaded{Snapshot: snap}))
	assert.Same(t, pred, Payload(PredictionComplete{Prediction: pred}))
	assert.Equal(t, PriceUpdate{CurrentPrice: 1}, Payload(PriceUpdate{CurrentPrice: 1}))

	body, err := json.Marshal(Payload(PredictionStarted{}))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))

	body, err = json.Marshal(Payload(ErrorOccurred{Operation: "load", Err: errors.New("no data")}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"operation":"load","message":"no data"}`, string(body))

	assert.Equal(t, ErrorPayload{Operation: "load"}, Payload(ErrorOccurred{Operation: "load"}))
}
