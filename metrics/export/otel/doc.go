// Package otel provides OpenTelemetry metric exporter bindings for
// authsession counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter instrument for
// each session metric. A single callback reads
// [authsession.Manager.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate manager state.
package otel
