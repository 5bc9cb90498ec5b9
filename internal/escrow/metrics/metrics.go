// Package metrics provides observability for the escrow module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LeasesStarted     prometheus.Counter
	LeasesReleased    prometheus.Counter
	LeasesRefunded    prometheus.Counter
	TransfersFailed   prometheus.Counter
	ResolutionLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		LeasesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_leases_started_total",
			Help: "Leases that locked funds into escrow",
		}),
		LeasesReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_leases_released_total",
			Help: "Leases resolved by owner confirmation",
		}),
		LeasesRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_leases_refunded_total",
			Help: "Leases resolved by deadline refund",
		}),
		TransfersFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_escrow_transfers_failed_total",
			Help: "Outbound transfers that failed and rolled the operation back",
		}),
		ResolutionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rentgate_escrow_operation_duration_seconds",
			Help:    "Duration of escrow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementLeasesStarted() {
	if m != nil {
		m.LeasesStarted.Inc()
	}
}

func (m *Metrics) IncrementLeasesReleased() {
	if m != nil {
		m.LeasesReleased.Inc()
	}
}

func (m *Metrics) IncrementLeasesRefunded() {
	if m != nil {
		m.LeasesRefunded.Inc()
	}
}

func (m *Metrics) IncrementTransfersFailed() {
	if m != nil {
		m.TransfersFailed.Inc()
	}
}

// ObserveOperation records the duration of an escrow operation. Call with
// time.Now() captured at the start of the operation.
func (m *Metrics) ObserveOperation(start time.Time) {
	if m != nil {
		m.ResolutionLatency.Observe(time.Since(start).Seconds())
	}
}
