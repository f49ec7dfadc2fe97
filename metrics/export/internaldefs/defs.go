package internaldefs

import (
	"github.com/MrEthical07/linkauth"
)

// CounterDef binds a counter to its exported name.
type CounterDef struct {
	ID   linkauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram to its exported name.
type HistogramDef struct {
	ID   linkauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const AuditDroppedName = "linkauth_audit_dropped_total"

// AuditDroppedHelp describes [AuditDroppedName].
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: linkauth.MetricRegisterSuccess, Name: "linkauth_register_success_total", Help: "Accounts created by registration."},
	{ID: linkauth.MetricRegisterDuplicate, Name: "linkauth_register_duplicate_total", Help: "Registrations rejected because the email is taken."},
	{ID: linkauth.MetricLoginSuccess, Name: "linkauth_login_success_total", Help: "Completed logins, any method."},
	{ID: linkauth.MetricLoginFailure, Name: "linkauth_login_failure_total", Help: "Rejected password logins."},
	{ID: linkauth.MetricOAuthLogin, Name: "linkauth_oauth_login_total", Help: "Completed external-provider logins."},
	{ID: linkauth.MetricOAuthUserCreated, Name: "linkauth_oauth_user_created_total", Help: "Accounts created on first external-provider login."},
	{ID: linkauth.MetricTwoFactorRequired, Name: "linkauth_2fa_required_total", Help: "Logins paused for a one-time code."},
	{ID: linkauth.MetricTwoFactorFailure, Name: "linkauth_2fa_failure_total", Help: "Rejected one-time codes."},
	{ID: linkauth.MetricTwoFactorEnabled, Name: "linkauth_2fa_enabled_total", Help: "Two-factor enrolments confirmed."},
	{ID: linkauth.MetricTwoFactorDisabled, Name: "linkauth_2fa_disabled_total", Help: "Two-factor enrolments removed."},
	{ID: linkauth.MetricSessionCreated, Name: "linkauth_session_created_total", Help: "Sessions persisted."},
	{ID: linkauth.MetricSessionCreateFailed, Name: "linkauth_session_create_failed_total", Help: "Tokens issued whose session row could not be written."},
	{ID: linkauth.MetricSessionRevoked, Name: "linkauth_session_revoked_total", Help: "Sessions revoked individually."},
	{ID: linkauth.MetricLogout, Name: "linkauth_logout_total", Help: "Current-session logouts."},
	{ID: linkauth.MetricLogoutOthers, Name: "linkauth_logout_others_total", Help: "Revoke-all-except-current operations."},
	{ID: linkauth.MetricAuthorizeSuccess, Name: "linkauth_authorize_success_total", Help: "Requests with a live session."},
	{ID: linkauth.MetricAuthorizeRejected, Name: "linkauth_authorize_rejected_total", Help: "Requests rejected for an invalid token or dead session."},
	{ID: linkauth.MetricActivityRefreshFailed, Name: "linkauth_activity_refresh_failed_total", Help: "Best-effort activity updates that failed."},
	{ID: linkauth.MetricPasswordChangeSuccess, Name: "linkauth_password_change_success_total", Help: "Successful password changes."},
	{ID: linkauth.MetricPasswordChangeRejected, Name: "linkauth_password_change_rejected_total", Help: "Rejected password changes."},
	{ID: linkauth.MetricAccountDeleted, Name: "linkauth_account_deleted_total", Help: "Deleted accounts."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: linkauth.MetricAuthorizeLatency, Name: "linkauth_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the Prometheus "le" labels matching the engine buckets.
var HistogramBounds = [8]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names the per-bucket OTel gauges.
var HistogramBoundSuffix = [8]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding missing buckets
// with zero and dropping extras.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
