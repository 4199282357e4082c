// Package metrics exposes Prometheus metrics for the async task
// subsystem: queue depth, task counts by state and finish type,
// dispatch latency, and the counters behind spec.md §7's error rows.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TasksByState reports live task counts per lifecycle state, so a
	// sustained buildup in Created (undispatched) or Executed
	// (unresponsive) is visible before it trips a timeout.
	TasksByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pcsd_tasks_by_state",
			Help: "Current number of live tasks by state",
		},
		[]string{"state"},
	)

	TasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcsd_tasks_finished_total",
			Help: "Total number of tasks that reached Finished, by finish type",
		},
		[]string{"finish_type"},
	)

	TasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcsd_tasks_created_total",
			Help: "Total number of tasks created",
		},
	)

	TasksRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcsd_tasks_rejected_total",
			Help: "Total number of task creations rejected for capacity exceeded",
		},
	)

	DefunctTasksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcsd_tasks_defunct_total",
			Help: "Total number of tasks force-finished for going unresponsive",
		},
	)

	AbandonedTasksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcsd_tasks_abandoned_total",
			Help: "Total number of finished tasks garbage collected as abandoned",
		},
	)

	KillsRequestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcsd_kills_requested_total",
			Help: "Total number of kill requests, by reason",
		},
		[]string{"reason"},
	)

	WorkerCrashesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcsd_worker_crashes_total",
			Help: "Total number of worker subprocess crashes detected and respawned",
		},
	)

	InQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcsd_bus_in_queue_depth",
			Help: "Current number of dispatch envelopes waiting in the in-queue",
		},
	)

	OutQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcsd_bus_out_queue_depth",
			Help: "Current number of messages waiting in the out-queue",
		},
	)

	WorkerPoolOccupied = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcsd_worker_pool_occupied",
			Help: "Current number of worker slots with a task assigned",
		},
	)

	WorkerPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcsd_worker_pool_size",
			Help: "Configured number of worker slots",
		},
	)

	WorkerPoolUnhealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pcsd_worker_pool_unhealthy",
			Help: "Number of occupied worker slots whose process failed a signal-0 liveness probe",
		},
	)

	SchedulerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pcsd_scheduler_tick_duration_seconds",
			Help:    "Time taken to run one scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pcsd_dispatch_latency_seconds",
			Help:    "Time from task creation to being handed to a worker",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcsd_http_requests_total",
			Help: "Total number of registry-facing HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pcsd_http_request_duration_seconds",
			Help:    "Registry-facing HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksByState,
		TasksFinishedTotal,
		TasksCreatedTotal,
		TasksRejectedTotal,
		DefunctTasksTotal,
		AbandonedTasksTotal,
		KillsRequestedTotal,
		WorkerCrashesTotal,
		InQueueDepth,
		OutQueueDepth,
		WorkerPoolOccupied,
		WorkerPoolSize,
		WorkerPoolUnhealthy,
		SchedulerTickDuration,
		DispatchLatency,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and recording it to
// a histogram when it finishes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
