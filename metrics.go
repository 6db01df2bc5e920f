package goIdentity

import (
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess         = internalmetrics.MetricLoginSuccess
	MetricLoginFailure         = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited     = internalmetrics.MetricLoginRateLimited
	MetricCaptchaIssued        = internalmetrics.MetricCaptchaIssued
	MetricCaptchaFailure       = internalmetrics.MetricCaptchaFailure
	MetricTokenIssued          = internalmetrics.MetricTokenIssued
	MetricValidateSuccess      = internalmetrics.MetricValidateSuccess
	MetricValidateFailure      = internalmetrics.MetricValidateFailure
	MetricTokenBlacklisted     = internalmetrics.MetricTokenBlacklisted
	MetricRefreshSuccess       = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure       = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	MetricLogout               = internalmetrics.MetricLogout
	MetricLogoutAll            = internalmetrics.MetricLogoutAll
	MetricPermissionAllowed    = internalmetrics.MetricPermissionAllowed
	MetricPermissionDenied     = internalmetrics.MetricPermissionDenied
	MetricPermissionCacheHit   = internalmetrics.MetricPermissionCacheHit
	MetricPermissionCacheMiss  = internalmetrics.MetricPermissionCacheMiss
	MetricPermissionMutation   = internalmetrics.MetricPermissionMutation
	MetricInvalidationFailure  = internalmetrics.MetricInvalidationFailure
	MetricBackendUnavailable   = internalmetrics.MetricBackendUnavailable
	MetricValidateLatency      = internalmetrics.MetricValidateLatency
	MetricCheckLatency         = internalmetrics.MetricCheckLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by cfg. When Enabled
// is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

// permissionObserver feeds permission.Engine cache events into Metrics.
type permissionObserver struct {
	metrics *Metrics
}

func (o permissionObserver) CacheHit()  { o.metrics.Inc(MetricPermissionCacheHit) }
func (o permissionObserver) CacheMiss() { o.metrics.Inc(MetricPermissionCacheMiss) }

func (o permissionObserver) InvalidationFailed(int) {
	o.metrics.Inc(MetricInvalidationFailure)
}
