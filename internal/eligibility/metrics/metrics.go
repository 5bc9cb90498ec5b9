// Package metrics provides observability for the eligibility gate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ProofsAccepted       prometheus.Counter
	ProofsRejected       prometheus.Counter
	AttestationsAccepted prometheus.Counter
	AttestationsRejected prometheus.Counter
	ReplaysBlocked       prometheus.Counter
	SubmitDuration       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ProofsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_proofs_accepted_total",
			Help: "Proof-mode submissions that granted eligibility",
		}),
		ProofsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_proofs_rejected_total",
			Help: "Proof-mode submissions rejected for any reason",
		}),
		AttestationsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_attestations_accepted_total",
			Help: "Attestation-mode submissions that granted eligibility",
		}),
		AttestationsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_attestations_rejected_total",
			Help: "Attestation-mode submissions rejected for any reason",
		}),
		ReplaysBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rentgate_nullifier_replays_blocked_total",
			Help: "Submissions rejected because their nullifier was already used",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rentgate_eligibility_submit_duration_seconds",
			Help:    "Duration of eligibility submissions (both modes)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementProofsAccepted() {
	if m != nil {
		m.ProofsAccepted.Inc()
	}
}

func (m *Metrics) IncrementProofsRejected() {
	if m != nil {
		m.ProofsRejected.Inc()
	}
}

func (m *Metrics) IncrementAttestationsAccepted() {
	if m != nil {
		m.AttestationsAccepted.Inc()
	}
}

func (m *Metrics) IncrementAttestationsRejected() {
	if m != nil {
		m.AttestationsRejected.Inc()
	}
}

func (m *Metrics) IncrementReplaysBlocked() {
	if m != nil {
		m.ReplaysBlocked.Inc()
	}
}

// ObserveSubmit records the duration of a submission. Call with time.Now()
// captured at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m != nil {
		m.SubmitDuration.Observe(time.Since(start).Seconds())
	}
}
