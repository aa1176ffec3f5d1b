package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"FinDash/internal/domain/repository"
)

var (
	_ repository.Metrics = (*Recorder)(nil)
	_ repository.Metrics = Noop{}
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordEvent("priceUpdate")
	r.RecordEvent("priceUpdate")
	r.RecordError("predict")
	r.RecordLastPrice(9138.9)
	r.RecordPrediction("ignored")
	r.SetSubscribers(3)
	r.RecordDelivery("initialData", true)
	r.RecordDelivery("priceUpdate", false)
	r.RecordLatency("load", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.eventsTotal.WithLabelValues("priceUpdate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("predict")))
	assert.Equal(t, 9138.9, testutil.ToFloat64(r.lastPrice))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.predictions.WithLabelValues("ignored")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.subscribers))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveriesTotal.WithLabelValues("initialData", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveriesTotal.WithLabelValues("priceUpdate", "dropped")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
