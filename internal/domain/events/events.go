// Package events defines the typed event variants published by the dashboard store.
// Payloads are copies; handlers may keep them.
package events

import (
	"FinDash/internal/domain/models"
	"FinDash/pkg/eventbus"
)

const (
	NameDataLoaded         eventbus.Name = "dataLoaded"
	NamePredictionStarted  eventbus.Name = "predictionStarted"
	NamePredictionComplete eventbus.Name = "predictionComplete"
	NamePriceUpdate        eventbus.Name = "priceUpdate"
	NameChartUpdate        eventbus.Name = "chartUpdate"
	NameError              eventbus.Name = "error"
)

// All lists every event name in the order a full dashboard cycle emits them.
var All = []eventbus.Name{
	NameDataLoaded,
	NamePredictionStarted,
	NamePredictionComplete,
	NamePriceUpdate,
	NameChartUpdate,
	NameError,
}

type DataLoaded struct {
	Snapshot *models.Snapshot
}

type PredictionStarted struct{}

type PredictionComplete struct {
	Prediction *models.Prediction
}

type PriceUpdate struct {
	CurrentPrice       float64 `json:"currentPrice"`
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
}

type ChartUpdate struct {
	PriceHistory []models.PricePoint `json:"priceHistory"`
}

// ErrorOccurred is published when a load or prediction cycle fails.
type ErrorOccurred struct {
	Operation string
	Err       error
}

func (DataLoaded) EventName() eventbus.Name         { return NameDataLoaded }
func (PredictionStarted) EventName() eventbus.Name  { return NamePredictionStarted }
func (PredictionComplete) EventName() eventbus.Name { return NamePredictionComplete }
func (PriceUpdate) EventName() eventbus.Name        { return NamePriceUpdate }
func (ChartUpdate) EventName() eventbus.Name        { return NameChartUpdate }
func (ErrorOccurred) EventName() eventbus.Name      { return NameError }

// ErrorPayload is the client-visible form of ErrorOccurred.
type ErrorPayload struct {
	Operation string `json:"operation"`
	Message   string `json:"message"`
}

// Payload returns the serializable body of evt.
func Payload(evt eventbus.Event) any {
	switch e := evt.(type) {
	case DataLoaded:
		return e.Snapshot
	case PredictionStarted:
		return struct{}{}
	case PredictionComplete:
		return e.Prediction
	case PriceUpdate:
		return e
	case ChartUpdate:
		return e
	case ErrorOccurred:
		p := ErrorPayload{Operation: e.Operation}
		if e.Err != nil {
			p.Message = e.Err.Error()
		}
		return p
	default:
		return evt
	}
}
