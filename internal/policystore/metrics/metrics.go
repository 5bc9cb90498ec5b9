// Package metrics provides observability for the policy module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PoliciesCreated      prometheus.Counter
	CreatePolicyDuration prometheus.Histogram
}

// New creates a Metrics instance with all policy module metrics registered.
func New() *Metrics {
	return &Metrics{
		PoliciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_policies_created_total",
			Help: "Total number of rental policies created",
		}),
		CreatePolicyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rentgate_create_policy_duration_seconds",
			Help:    "Duration of CreatePolicy operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementPoliciesCreated records a successful policy creation.
func (m *Metrics) IncrementPoliciesCreated() {
	if m != nil {
		m.PoliciesCreated.Inc()
	}
}

// ObserveCreatePolicy records the duration of a CreatePolicy operation.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveCreatePolicy(start time.Time) {
	if m != nil {
		m.CreatePolicyDuration.Observe(time.Since(start).Seconds())
	}
}
