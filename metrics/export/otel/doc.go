// Package otel publishes goGuard metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter for every engine counter and
// audit statistic, plus one Int64ObservableGauge per latency bucket. A single callback
// reads Engine.MetricsSnapshot and Engine.AuditStats on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
