package merge

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeMerged       = "merged"
	outcomeEmpty        = "empty"
	outcomeInvalid      = "invalid"
	outcomeNotFound     = "not_found"
	outcomeInconsistent = "inconsistent"
	outcomeFailed       = "failed"

	softFailureAlert   = "alert"
	softFailureEnqueue = "enqueue"
)

type Metrics struct {
	Merges         *prometheus.CounterVec
	Duration       prometheus.Histogram
	PostsMerged    prometheus.Counter
	ThreadsDeleted prometheus.Counter
	SoftFailures   *prometheus.CounterVec
}

// Creates the merge metrics and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmn",
			Subsystem: "merge",
			Name:      "requests_total",
			Help:      "Post merges by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hmn",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Time spent in committed merges, including alerts and enqueueing.",
			Buckets:   prometheus.DefBuckets,
		}),
		PostsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmn",
			Subsystem: "merge",
			Name:      "posts_total",
			Help:      "Source posts consumed by committed merges.",
		}),
		ThreadsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hmn",
			Subsystem: "merge",
			Name:      "threads_deleted_total",
			Help:      "Source threads deleted because a merge emptied them.",
		}),
		SoftFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hmn",
			Subsystem: "merge",
			Name:      "soft_failures_total",
			Help:      "Alert and enqueue failures after a merge committed.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.Merges, m.Duration, m.PostsMerged, m.ThreadsDeleted, m.SoftFailures)
	}
	return m
}

var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

func (m *Metrics) outcome(outcome string) {
	m.Merges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) softFailure(kind string) {
	m.SoftFailures.WithLabelValues(kind).Inc()
}
