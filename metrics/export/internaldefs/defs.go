package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// AuditDef reads one counter out of the audit logger stats.
type AuditDef struct {
	Name  string
	Help  string
	Value func(goGuard.AuditStats) uint64
}

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricRequestForwarded, Name: "goguard_requests_forwarded_total", Help: "Requests that passed every check."},
	{ID: goGuard.MetricPreflight, Name: "goguard_preflight_total", Help: "CORS preflight requests answered."},
	{ID: goGuard.MetricRateLimited, Name: "goguard_rate_limited_total", Help: "Requests rejected by the rate limiter."},
	{ID: goGuard.MetricRateLimitFailOpen, Name: "goguard_rate_limit_fail_open_total", Help: "Rate-limit checks allowed because the store was unavailable."},
	{ID: goGuard.MetricMissingToken, Name: "goguard_missing_token_total", Help: "Protected requests without a token."},
	{ID: goGuard.MetricInvalidToken, Name: "goguard_invalid_token_total", Help: "Requests with a token that failed verification."},
	{ID: goGuard.MetricSessionExpired, Name: "goguard_session_expired_total", Help: "Sessions ended by the idle timeout."},
	{ID: goGuard.MetricSessionRevoked, Name: "goguard_session_revoked_total", Help: "Requests presenting a revoked session."},
	{ID: goGuard.MetricSessionStoreUnavailable, Name: "goguard_session_store_unavailable_total", Help: "Session checks rejected because the store was unavailable."},
	{ID: goGuard.MetricPermissionDenied, Name: "goguard_permission_denied_total", Help: "Requests rejected by the permission table."},
	{ID: goGuard.MetricCORSRejected, Name: "goguard_cors_rejected_total", Help: "Preflight requests from disallowed origins."},
	{ID: goGuard.MetricLoginSuccess, Name: "goguard_login_success_total", Help: "Successful logins on login routes."},
	{ID: goGuard.MetricLoginFailure, Name: "goguard_login_failure_total", Help: "Failed logins on login routes."},
	{ID: goGuard.MetricLogout, Name: "goguard_logout_total", Help: "Logout operations."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricEvaluateLatency, Name: "goguard_evaluate_latency_seconds", Help: "Pipeline evaluation latency."},
}

// AuditDefs lists the audit counters exported by every backend.
var AuditDefs = []AuditDef{
	{Name: "goguard_security_events_total", Help: "Security events recorded.", Value: func(s goGuard.AuditStats) uint64 { return s.Recorded }},
	{Name: "goguard_security_events_suspicious_total", Help: "Security events flagged suspicious.", Value: func(s goGuard.AuditStats) uint64 { return s.Suspicious }},
	{Name: "goguard_audit_dropped_total", Help: "Security events dropped due to dispatcher backpressure.", Value: func(s goGuard.AuditStats) uint64 { return s.Dropped }},
	{Name: "goguard_audit_write_failed_total", Help: "Security events the sink failed to persist.", Value: func(s goGuard.AuditStats) uint64 { return s.Failed }},
	{Name: "goguard_alerts_sent_total", Help: "Alerts delivered.", Value: func(s goGuard.AuditStats) uint64 { return s.AlertsSent }},
	{Name: "goguard_alerts_dropped_total", Help: "Alerts dropped by the queue or throttle.", Value: func(s goGuard.AuditStats) uint64 { return s.AlertsDropped }},
	{Name: "goguard_alerts_deduped_total", Help: "Alerts suppressed as duplicates.", Value: func(s goGuard.AuditStats) uint64 { return s.AlertsDeduped }},
	{Name: "goguard_alerts_failed_total", Help: "Alerts whose delivery failed.", Value: func(s goGuard.AuditStats) uint64 { return s.AlertsFailed }},
}

// HistogramUpperBounds are the finite bucket bounds in seconds; the last bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling the rest.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
