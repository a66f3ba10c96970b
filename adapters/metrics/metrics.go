// Package metrics provides Prometheus metrics collection for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the subscription engine.
type Collector struct {
	// Payment metrics
	PaymentsInitiated  *prometheus.CounterVec
	PaymentsSettled    *prometheus.CounterVec
	CallbacksAbsorbed  prometheus.Counter
	ProviderPushSecs   prometheus.Histogram
	ProviderPushErrors prometheus.Counter

	// Sweep metrics
	SweepExpired prometheus.Counter
	SweepErrors  prometheus.Counter

	// Quota metrics
	ConsumeTotal   *prometheus.CounterVec
	ConsumeRetries prometheus.Counter

	// Admin metrics
	AdminMutations *prometheus.CounterVec
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		PaymentsInitiated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "payments_initiated_total",
				Help:      "Payment initiations by outcome (pending, failed, rejected)",
			},
			[]string{"outcome"},
		),
		PaymentsSettled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "payments_settled_total",
				Help:      "Terminal payment transitions by status",
			},
			[]string{"status"},
		),
		CallbacksAbsorbed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "callbacks_absorbed_total",
				Help:      "Duplicate terminal provider callbacks absorbed as no-ops",
			},
		),
		ProviderPushSecs: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "kodisha",
				Name:      "provider_push_duration_seconds",
				Help:      "STK push round-trip duration",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		ProviderPushErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "provider_push_errors_total",
				Help:      "Provider push calls that failed after retry",
			},
		),
		SweepExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "sweep_expired_total",
				Help:      "PENDING payments expired by the timeout sweep",
			},
		),
		SweepErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "sweep_errors_total",
				Help:      "Sweep iterations that returned an error",
			},
		),
		ConsumeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "quota_consume_total",
				Help:      "Quota consumption attempts by field and outcome",
			},
			[]string{"field", "outcome"},
		),
		ConsumeRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "quota_consume_retries_total",
				Help:      "Candidate re-reads after a lost decrement race",
			},
		),
		AdminMutations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kodisha",
				Name:      "admin_mutations_total",
				Help:      "Audited admin mutations by action",
			},
			[]string{"action"},
		),
	}
}
