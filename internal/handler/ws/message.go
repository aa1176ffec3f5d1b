package ws

import (
	"encoding/json"

	"FinDash/internal/domain/events"
	"FinDash/pkg/eventbus"
)

// Push message types.
const (
	TypeInitialData      = "initialData"
	TypeDataLoaded       = "dataLoaded"
	TypePredictionResult = "predictionResult"
	TypePriceUpdate      = "priceUpdate"
	TypeChartUpdate      = "chartUpdate"
	TypeError            = "error"
)

// Inbound commands.
const (
	CommandGetPrediction    = "getPrediction"
	CommandGetDashboardData = "getDashboardData"
)

// Message is the envelope of every push.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func encode(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Data: data})
}

// messageType maps a bus event to the push type subscribers see.
// PredictionStarted has no push form; ErrorOccurred only when forwarding is enabled.
func messageType(evt eventbus.Event, forwardErrors bool) (string, bool) {
	switch evt.(type) {
	case events.DataLoaded:
		return TypeDataLoaded, true
	case events.PredictionComplete:
		return TypePredictionResult, true
	case events.PriceUpdate:
		return TypePriceUpdate, true
	case events.ChartUpdate:
		return TypeChartUpdate, true
	case events.ErrorOccurred:
		return TypeError, forwardErrors
	default:
		return "", false
	}
}
