package models

import "time"

// MaxHistoryPoints bounds Snapshot.PriceHistory.
const MaxHistoryPoints = 30

// PricePoint is one entry of the rolling price chart.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// ModelMetrics describes offline evaluation scores of a trained model.
type ModelMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Snapshot is the complete dashboard state at a point in time.
type Snapshot struct {
	Version            uint64                  `json:"version"`
	CurrentPrice       float64                 `json:"currentPrice"`
	PriceChange        float64                 `json:"priceChange"`
	PriceChangePercent float64                 `json:"priceChangePercent"`
	DataPointCount     int                     `json:"dataPointCount"`
	FeatureCount       int                     `json:"featureCount"`
	PriceHistory       []PricePoint            `json:"priceHistory"`
	Models             map[string]ModelMetrics `json:"models"`
}

// Clone returns a deep copy so callers never share the store's slices or maps.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.PriceHistory = ClonePriceHistory(s.PriceHistory)
	out.Models = make(map[string]ModelMetrics, len(s.Models))
	for k, v := range s.Models {
		out.Models[k] = v
	}
	return &out
}

// ClonePriceHistory copies a history slice.
func ClonePriceHistory(h []PricePoint) []PricePoint {
	out := make([]PricePoint, len(h))
	copy(out, h)
	return out
}
