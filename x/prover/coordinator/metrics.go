package coordinator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the coordinator
type Metrics struct {
	// Registry metrics
	TasksSubmitted prometheus.Counter
	TasksRetried   prometheus.Counter
	TasksKnown     prometheus.Gauge
	TasksCompleted *prometheus.CounterVec

	// Gossip metrics
	MergeFailures prometheus.Counter
	MergedTasks   *prometheus.CounterVec

	// Election metrics
	Elections *prometheus.CounterVec

	// Execution metrics
	DutyCycles      prometheus.Counter
	InFlight        prometheus.Gauge
	TaskDuration    prometheus.Histogram
	PanicRecoveries *prometheus.CounterVec
	DroppedResults  prometheus.Counter

	// Key cache metrics
	KeyCacheLookups *prometheus.CounterVec
}

var (
	coordinatorMetricsOnce sync.Once
	coordinatorMetrics     *Metrics
)

// NewMetrics creates and registers coordinator metrics (singleton pattern)
func NewMetrics() *Metrics {
	coordinatorMetricsOnce.Do(func() {
		coordinatorMetrics = &Metrics{
			TasksSubmitted: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "tasks_submitted_total",
					Help:      "Total distinct tasks enqueued locally",
				},
			),
			TasksRetried: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "tasks_retried_total",
					Help:      "Total errored tasks re-queued by a retry request",
				},
			),
			TasksKnown: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "tasks_known",
					Help:      "Tasks held in the registry, never purged",
				},
			),
			TasksCompleted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "tasks_completed_total",
					Help:      "Total tasks computed by this node",
				},
				[]string{"result"},
			),
			MergeFailures: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "gossip",
					Name:      "merge_failures_total",
					Help:      "Total merge passes aborted by a peer error",
				},
			),
			MergedTasks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "gossip",
					Name:      "merged_tasks_total",
					Help:      "Tasks added or updated from peer views",
				},
				[]string{"action"},
			),
			Elections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "election",
					Name:      "elections_total",
					Help:      "Election outcomes for candidate tasks",
				},
				[]string{"outcome"},
			),
			DutyCycles: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "duty_cycles_total",
					Help:      "Total duty-cycle passes",
				},
			),
			InFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "tasks_in_flight",
					Help:      "1 while an obtained task is executing",
				},
			),
			TaskDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "task_duration_seconds",
					Help:      "Wall time of obtained task executions",
					Buckets:   []float64{0.1, 1, 5, 15, 60, 300, 900, 1800, 3600},
				},
			),
			PanicRecoveries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "panic_recoveries_total",
					Help:      "Panics converted into errors",
				},
				[]string{"handler"},
			),
			DroppedResults: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "coordinator",
					Name:      "dropped_results_total",
					Help:      "Results discarded because their task was no longer registered",
				},
			),
			KeyCacheLookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "proverd",
					Subsystem: "keycache",
					Name:      "lookups_total",
					Help:      "Proving key cache lookups",
				},
				[]string{"result"},
			),
		}
	})
	return coordinatorMetrics
}
