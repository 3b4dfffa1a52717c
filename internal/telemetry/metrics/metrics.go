// Package metrics exposes the pipeline's Prometheus registry, grounded
// on the teacher's custom-registry promauto.With(Registry) pattern
// (metrics/metrics.go), adapted from per-trader gauges to per-component
// backtest-pipeline counters and histograms (spec §6.6).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the backtest pipeline.
var Registry = prometheus.NewRegistry()

var (
	// WorkerTasksTotal counts completed work items by outcome.
	WorkerTasksTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "openingrange",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Total number of backtest work items processed, by status.",
		},
		[]string{"status"},
	)

	// WorkerTaskDurationSeconds tracks wall-clock time to run a single
	// sweep point across all its staged dates.
	WorkerTaskDurationSeconds = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "openingrange",
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Duration of a single backtest work item.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ReaperRowsLifecycledTotal counts rows moved from the results
	// keyspace into the durable store.
	ReaperRowsLifecycledTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "openingrange",
			Subsystem: "reaper",
			Name:      "rows_lifecycled_total",
			Help:      "Total number of result rows inserted into the durable store.",
		},
	)

	// ReaperBatchDurationSeconds tracks one scan-filter-insert-delete
	// cycle.
	ReaperBatchDurationSeconds = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "openingrange",
			Subsystem: "reaper",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one reaper run.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// DispatchTasksEnqueuedTotal counts task messages pushed onto the
	// broker by the dispatcher.
	DispatchTasksEnqueuedTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "openingrange",
			Subsystem: "dispatch",
			Name:      "tasks_enqueued_total",
			Help:      "Total number of task messages enqueued.",
		},
	)
)
