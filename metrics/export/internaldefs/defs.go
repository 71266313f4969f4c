package internaldefs

import (
	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter, in exposition order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricAuthSuccess, Name: "authcore_auth_success_total", Help: "Successful authentications."},
	{ID: authcore.MetricAuthFailure, Name: "authcore_auth_failure_total", Help: "Failed authentications of any reason."},
	{ID: authcore.MetricAuthUserNotFound, Name: "authcore_auth_user_not_found_total", Help: "Authentications for an unknown email."},
	{ID: authcore.MetricAuthInvalidPassword, Name: "authcore_auth_invalid_password_total", Help: "Authentications with a wrong password."},
	{ID: authcore.MetricAuthLockedRejected, Name: "authcore_auth_locked_rejected_total", Help: "Authentications refused because the principal is locked."},
	{ID: authcore.MetricAuthInactiveRejected, Name: "authcore_auth_inactive_rejected_total", Help: "Authentications refused because the principal is inactive."},
	{ID: authcore.MetricAuthPasswordExpired, Name: "authcore_auth_password_expired_total", Help: "Authentications that require a password change."},
	{ID: authcore.MetricLockoutTriggered, Name: "authcore_lockout_triggered_total", Help: "Principals that crossed the failure threshold."},
	{ID: authcore.MetricAccountUnlocked, Name: "authcore_account_unlocked_total", Help: "Administrative unlocks."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh operations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Access tokens accepted."},
	{ID: authcore.MetricValidateFailure, Name: "authcore_validate_failure_total", Help: "Access tokens rejected."},
	{ID: authcore.MetricTokenTypeMismatch, Name: "authcore_token_type_mismatch_total", Help: "Tokens presented where the other type was expected."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Single-session logout operations."},
	{ID: authcore.MetricLogoutAll, Name: "authcore_logout_all_total", Help: "Logout-all operations."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeInvalidOld, Name: "authcore_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: authcore.MetricPasswordChangeReuseRejected, Name: "authcore_password_change_reuse_rejected_total", Help: "Password changes rejected for reuse."},
	{ID: authcore.MetricPasswordChangePolicyRejected, Name: "authcore_password_change_policy_rejected_total", Help: "Password changes rejected by the password policy."},
	{ID: authcore.MetricPasswordHashUpgraded, Name: "authcore_password_hash_upgraded_total", Help: "Stored hashes rehashed on login."},
	{ID: authcore.MetricPermissionGranted, Name: "authcore_permission_granted_total", Help: "Permission checks that passed."},
	{ID: authcore.MetricPermissionDenied, Name: "authcore_permission_denied_total", Help: "Permission checks that failed."},
	{ID: authcore.MetricBackendUnavailable, Name: "authcore_backend_unavailable_total", Help: "Operations failed closed on a backing store error."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "ValidateToken latency."},
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter.
const (
	AuditDroppedName = "authcore_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped under dispatcher backpressure."
)

// AuditSinkPanicsName and AuditSinkPanicsHelp describe the sink panic counter.
const (
	AuditSinkPanicsName = "authcore_audit_sink_panics_total"
	AuditSinkPanicsHelp = "Audit sink calls that panicked."
)

// BucketCount is the number of latency buckets, +Inf included.
const BucketCount = 8

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf and has no entry.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native
// histograms.
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

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
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
