// Package prometheus exposes goGuard metrics through client_golang.
//
// [Collector] implements prometheus.Collector and reads Engine.MetricsSnapshot and
// Engine.AuditStats on every scrape. [Exporter] wraps it in a private registry and
// serves it with promhttp. Counter names are goguard_*_total; the histogram is
// goguard_evaluate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
