// Package otel exports goIdentity engine metrics as OpenTelemetry
// asynchronous instruments.
//
// [NewExporter] creates one Int64ObservableCounter per engine counter and,
// for each latency histogram, one Int64ObservableGauge per cumulative
// bucket plus a count gauge. A single callback reads
// Engine.MetricsSnapshot on every collection.
//
// The caller owns the MeterProvider and passes in a Meter.
package otel
