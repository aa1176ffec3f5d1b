package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsTotal     *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       prometheus.Gauge
	latency         *prometheus.HistogramVec
	predictions     *prometheus.CounterVec
	subscribers     prometheus.Gauge
	deliveriesTotal *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on reg.
// Pass prometheus.DefaultRegisterer to expose the metrics on /metrics.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "findash_events_published_total",
				Help: "Total number of dashboard events published on the bus",
			},
			[]string{"event"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "findash_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "findash_current_price",
				Help: "Current simulated price",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "findash_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "findash_prediction_cycles_total",
				Help: "Prediction cycles by result (completed, failed, ignored)",
			},
			[]string{"result"},
		),
		subscribers: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "findash_ws_subscribers",
				Help: "Currently connected WebSocket subscribers",
			},
		),
		deliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "findash_ws_deliveries_total",
				Help: "Push messages handed to subscribers by type and result",
			},
			[]string{"type", "result"},
		),
	}
}

// RecordEvent records a published bus event.
func (r *Recorder) RecordEvent(name string) {
	r.eventsTotal.WithLabelValues(name).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the current price.
func (r *Recorder) RecordLastPrice(price float64) {
	r.lastPrice.Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordPrediction counts a prediction cycle outcome.
func (r *Recorder) RecordPrediction(result string) {
	r.predictions.WithLabelValues(result).Inc()
}

// SetSubscribers sets the live subscriber gauge.
func (r *Recorder) SetSubscribers(n int) {
	r.subscribers.Set(float64(n))
}

// RecordDelivery counts one push attempt.
func (r *Recorder) RecordDelivery(msgType string, ok bool) {
	result := "ok"
	if !ok {
		result = "dropped"
	}
	r.deliveriesTotal.WithLabelValues(msgType, result).Inc()
}
