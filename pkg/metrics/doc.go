/*
Package metrics provides Prometheus metrics for the async task
subsystem: live task counts by state, finish-type counters, bus queue
depth, worker pool occupancy, and scheduler tick/dispatch latency.

Metrics are registered at package init with prometheus.MustRegister
and exposed via Handler for scraping. Collector polls the registry,
bus, and worker pool on an interval and publishes the gauges that
can't be updated inline from a single call site (queue depth, task
counts by state); counters like TasksCreatedTotal and
KillsRequestedTotal are incremented directly by the packages that
observe the event.
*/
package metrics
