package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for export.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful logins."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Failed logins, lockouts and captcha failures included."},
	{ID: goIdentity.MetricLoginRateLimited, Name: "goidentity_login_rate_limited_total", Help: "Logins refused while the username was locked out."},
	{ID: goIdentity.MetricCaptchaIssued, Name: "goidentity_captcha_issued_total", Help: "Captcha challenges issued."},
	{ID: goIdentity.MetricCaptchaFailure, Name: "goidentity_captcha_failure_total", Help: "Logins refused for a missing or wrong captcha."},
	{ID: goIdentity.MetricTokenIssued, Name: "goidentity_token_issued_total", Help: "Access/refresh pairs issued."},
	{ID: goIdentity.MetricValidateSuccess, Name: "goidentity_validate_success_total", Help: "Access tokens accepted."},
	{ID: goIdentity.MetricValidateFailure, Name: "goidentity_validate_failure_total", Help: "Access tokens rejected."},
	{ID: goIdentity.MetricTokenBlacklisted, Name: "goidentity_token_blacklisted_total", Help: "Access tokens rejected as revoked."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "goidentity_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: goIdentity.MetricRefreshFailure, Name: "goidentity_refresh_failure_total", Help: "Failed refresh token rotations."},
	{ID: goIdentity.MetricRefreshReuseDetected, Name: "goidentity_refresh_reuse_detected_total", Help: "Replayed refresh tokens; the slot was purged."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Single-session revocations."},
	{ID: goIdentity.MetricLogoutAll, Name: "goidentity_logout_all_total", Help: "Logout-all operations."},
	{ID: goIdentity.MetricPermissionAllowed, Name: "goidentity_permission_allowed_total", Help: "Permission checks allowed."},
	{ID: goIdentity.MetricPermissionDenied, Name: "goidentity_permission_denied_total", Help: "Permission checks denied."},
	{ID: goIdentity.MetricPermissionCacheHit, Name: "goidentity_permission_cache_hit_total", Help: "Permission checks answered from the decision cache."},
	{ID: goIdentity.MetricPermissionCacheMiss, Name: "goidentity_permission_cache_miss_total", Help: "Permission checks evaluated by the enforcer."},
	{ID: goIdentity.MetricPermissionMutation, Name: "goidentity_permission_mutation_total", Help: "Policy mutations that changed the policy."},
	{ID: goIdentity.MetricInvalidationFailure, Name: "goidentity_permission_invalidation_failure_total", Help: "Policy mutations that left cached decisions behind."},
	{ID: goIdentity.MetricBackendUnavailable, Name: "goidentity_backend_unavailable_total", Help: "Operations failed by Redis, the directory or a deadline."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "goidentity_validate_latency_seconds", Help: "Access token validation latency."},
	{ID: goIdentity.MetricCheckLatency, Name: "goidentity_check_latency_seconds", Help: "Permission check latency."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "goidentity_audit_dropped_total"

// BucketCount is the number of histogram buckets, +Inf included.
const BucketCount = internalmetrics.HistBucketCount

// HistogramBoundSuffix names each bucket bound for exporters that flatten
// buckets into individual instruments.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, 0, len(internalmetrics.HistogramBuckets))
	for _, d := range internalmetrics.HistogramBuckets {
		out = append(out, d.Seconds())
	}
	return out
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
