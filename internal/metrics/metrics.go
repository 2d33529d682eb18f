package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DispatchLatency tracks how long a gated event dispatch takes end to end
	DispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "drawbridge",
			Subsystem: "dispatch",
			Name:      "latency_seconds",
			Help:      "Time from firing a decision event to its resolution",
		},
		[]string{"event"},
	)

	// ListenerFailures tracks listener panics recovered during dispatch
	ListenerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawbridge",
			Subsystem: "dispatch",
			Name:      "listener_failures_total",
			Help:      "Number of listener panics isolated by the dispatcher",
		},
		[]string{"event"},
	)

	// DispatchTimeouts tracks dispatches resolved by deadline expiry
	DispatchTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawbridge",
			Subsystem: "dispatch",
			Name:      "timeouts_total",
			Help:      "Number of dispatches resolved by the dispatch timeout",
		},
		[]string{"event"},
	)

	// Decisions tracks resolved admission outcomes
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawbridge",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Final admission decisions applied by the gate",
		},
		[]string{"intent", "outcome"},
	)

	// SourceCollectLatency tracks the latency of policy input source collection
	SourceCollectLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "drawbridge",
			Subsystem: "policy_source",
			Name:      "collect_latency_seconds",
			Help:      "Time spent in Source.Collect()",
		},
		[]string{"source"},
	)

	// SourceCollectErrors tracks source collection errors
	SourceCollectErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawbridge",
			Subsystem: "policy_source",
			Name:      "collect_errors_total",
			Help:      "Number of policy input source collection errors",
		},
		[]string{"source", "error_type"},
	)

	// SourceStaleness tracks inputs that were rejected as stale
	SourceStaleness = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drawbridge",
			Subsystem: "policy_source",
			Name:      "stale_inputs_total",
			Help:      "Number of policy inputs that were marked as stale",
		},
		[]string{"source"},
	)
)

// MustRegister registers all metrics with the default Prometheus registry
func MustRegister() {
	prometheus.MustRegister(
		DispatchLatency,
		ListenerFailures,
		DispatchTimeouts,
		Decisions,
		SourceCollectLatency,
		SourceCollectErrors,
		SourceStaleness,
	)
}
