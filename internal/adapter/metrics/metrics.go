// Package metrics records placement metrics with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

const namespace = "orderledger"

type Recorder struct {
	ordersPlaced  prometheus.Counter
	lineOutcomes  *prometheus.CounterVec
	admissionWait prometheus.Histogram
	inFlight      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders recorded in the ledger.",
		}),
		lineOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_lines_total",
			Help:      "Order lines by outcome.",
		}, []string{"outcome"}),
		admissionWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_wait_seconds",
			Help:      "Time spent waiting at the admission gate.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "admission_in_flight",
			Help:      "Placements currently admitted.",
		}),
	}
	reg.MustRegister(r.ordersPlaced, r.lineOutcomes, r.admissionWait, r.inFlight)
	return r
}

func (r *Recorder) AdmissionWaited(wait time.Duration) {
	r.admissionWait.Observe(wait.Seconds())
}

func (r *Recorder) AdmissionChanged(inFlight int) {
	r.inFlight.Set(float64(inFlight))
}

func (r *Recorder) OrderPlaced(order domain.Order) {
	r.ordersPlaced.Inc()
	for _, line := range order.Lines {
		r.lineOutcomes.WithLabelValues(string(line.Outcome)).Inc()
	}
}
