package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for flowtree_mutations_total.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

type metrics struct {
	mutations  *prometheus.CounterVec
	renumbered *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// newMetrics registers the engine collectors on reg. A nil reg yields
// working but unregistered collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtree_mutations_total",
			Help: "Engine mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		renumbered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowtree_renumbered_messages_total",
			Help: "Messages whose identifier was rewritten by a shift or swap.",
		}, []string{"op"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowtree_mutation_duration_seconds",
			Help:    "Wall time of engine mutations, including lock wait.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *metrics) observe(op, outcome string, renumbered int, started time.Time) {
	m.mutations.WithLabelValues(op, outcome).Inc()
	if renumbered > 0 {
		m.renumbered.WithLabelValues(op).Add(float64(renumbered))
	}
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
