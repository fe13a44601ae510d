// Package metrics implements Prometheus metrics for the Interchange.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksDispatchedTotal counts tasks handed to a Manager by the
	// dispatch step (spec §4.7 step 7).
	TasksDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interchange_tasks_dispatched_total",
			Help: "Total number of tasks dispatched to managers",
		},
		[]string{"manager"},
	)

	// ResultsForwardedTotal counts result sub-messages forwarded to
	// results_out (spec §4.7 step 4).
	ResultsForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interchange_results_forwarded_total",
			Help: "Total number of results forwarded to the client",
		},
		[]string{"manager"},
	)

	// QueueSize tracks the number of pending tasks in the TaskQueue.
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "interchange_queue_size",
			Help: "Current number of tasks pending dispatch",
		},
	)

	// ManagersConnected tracks the current registry size.
	ManagersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "interchange_managers_connected",
			Help: "Current number of registered managers",
		},
	)

	// ManagerLostTotal counts heartbeat-timeout expirations (spec §4.7
	// step 5).
	ManagerLostTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interchange_manager_lost_total",
			Help: "Total number of managers expired for missing heartbeats",
		},
	)

	// ManagerDrainedTotal counts drained-manager expirations (spec §4.7
	// step 6).
	ManagerDrainedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interchange_manager_drained_total",
			Help: "Total number of managers expired after draining",
		},
	)

	// VersionMismatchTotal counts fatal registration rejections (spec
	// §4.3, §7).
	VersionMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interchange_version_mismatch_total",
			Help: "Total number of manager registrations rejected for version mismatch",
		},
	)

	// PollLatencySeconds measures time spent blocked in Bus.Poll per
	// iteration (spec §5's "one blocking call").
	PollLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "interchange_poll_latency_seconds",
			Help:    "Latency of each event loop poll",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)
)
