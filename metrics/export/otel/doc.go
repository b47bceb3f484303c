// Package otel publishes engine counters through an OpenTelemetry meter.
//
// [NewExporter] registers an Int64ObservableCounter per counter and, for
// the verification latency histogram, a bucket gauge with an le attribute
// plus a count gauge. One callback reads the engine snapshot per
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
