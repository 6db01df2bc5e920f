// Package prometheus exposes goIdentity engine metrics through
// client_golang.
//
// [Collector] turns each scrape into const metrics built from
// Engine.MetricsSnapshot: one goidentity_*_total counter per engine counter,
// goidentity_validate_latency_seconds and goidentity_check_latency_seconds
// histograms, and goidentity_audit_dropped_total.
//
// Nothing is registered globally; callers register the Collector or mount
// [Collector.Handler].
package prometheus
