package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ComplaintsCreatedTotal counts submitted complaints by category.
	ComplaintsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "citifix",
		Subsystem: "complaints",
		Name:      "created_total",
		Help:      "Total number of complaints submitted, labeled by category.",
	}, []string{"category"})

	// VotesTotal counts accepted votes. Duplicate votes are not counted.
	VotesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "citifix",
		Subsystem: "complaints",
		Name:      "votes_total",
		Help:      "Total number of accepted complaint votes.",
	})

	// EscalationsTotal counts complaints that crossed the vote threshold.
	EscalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "citifix",
		Subsystem: "complaints",
		Name:      "escalations_total",
		Help:      "Total number of complaints escalated to the public channel.",
	})

	// NotifyErrorTotal counts failed escalation posts. The escalation itself
	// still stands, so this is the only trace of a lost notification.
	NotifyErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "citifix",
		Subsystem: "complaints",
		Name:      "notify_error_total",
		Help:      "Total number of failed escalation notification posts.",
	})

	// ResolutionsTotal counts complaints moved to resolved.
	ResolutionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "citifix",
		Subsystem: "complaints",
		Name:      "resolutions_total",
		Help:      "Total number of complaints resolved.",
	})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ComplaintsCreatedTotal,
			VotesTotal,
			EscalationsTotal,
			NotifyErrorTotal,
			ResolutionsTotal,
		)
	})
}
