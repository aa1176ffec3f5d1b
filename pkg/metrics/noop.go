package metrics

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordEvent(string)            {}
func (Noop) RecordError(string)            {}
func (Noop) RecordLastPrice(float64)       {}
func (Noop) RecordLatency(string, float64) {}
func (Noop) RecordPrediction(string)       {}
func (Noop) SetSubscribers(int)            {}
func (Noop) RecordDelivery(string, bool)   {}
