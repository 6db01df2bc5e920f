package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a counter slot.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricCaptchaIssued
	MetricCaptchaFailure
	MetricTokenIssued
	MetricValidateSuccess
	MetricValidateFailure
	MetricTokenBlacklisted
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricLogout
	MetricLogoutAll
	MetricPermissionAllowed
	MetricPermissionDenied
	MetricPermissionCacheHit
	MetricPermissionCacheMiss
	MetricPermissionMutation
	MetricInvalidationFailure
	MetricBackendUnavailable
	MetricValidateLatency
	MetricCheckLatency
	MetricIDCount
)

var names = [MetricIDCount]string{
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricLoginRateLimited:     "login_rate_limited",
	MetricCaptchaIssued:        "captcha_issued",
	MetricCaptchaFailure:       "captcha_failure",
	MetricTokenIssued:          "token_issued",
	MetricValidateSuccess:      "validate_success",
	MetricValidateFailure:      "validate_failure",
	MetricTokenBlacklisted:     "token_blacklisted",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshReuseDetected: "refresh_reuse_detected",
	MetricLogout:               "logout",
	MetricLogoutAll:            "logout_all",
	MetricPermissionAllowed:    "permission_allowed",
	MetricPermissionDenied:     "permission_denied",
	MetricPermissionCacheHit:   "permission_cache_hit",
	MetricPermissionCacheMiss:  "permission_cache_miss",
	MetricPermissionMutation:   "permission_mutation",
	MetricInvalidationFailure:  "permission_invalidation_failure",
	MetricBackendUnavailable:   "backend_unavailable",
	MetricValidateLatency:      "validate_latency",
	MetricCheckLatency:         "check_latency",
}

// Name returns the snake_case export name of id, or "" when out of range.
func (id MetricID) Name() string {
	if id >= MetricIDCount {
		return ""
	}
	return names[id]
}

// HistogramBuckets are the inclusive upper bounds of the latency buckets;
// the last bucket is +Inf.
var HistogramBuckets = [HistBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const (
	HistBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [HistBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config enables counters and, separately, latency histograms.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds atomic counters and optional latency histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]histogram
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. No-op when disabled.
//
//	Performance: one atomic add, no allocation.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of a latency metric.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !isLatency(id) {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if isLatency(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricValidateLatency, MetricCheckLatency} {
			buckets := make([]uint64, HistBucketCount)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func isLatency(id MetricID) bool {
	return id == MetricValidateLatency || id == MetricCheckLatency
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBuckets {
		if d <= bound {
			return i
		}
	}
	return HistBucketCount - 1
}
