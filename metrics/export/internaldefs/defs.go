package internaldefs

import (
	authsession "github.com/platefeed/authsession"
)

// CounterDef defines a public type used by authsession APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session manager.
var CounterDefs = []CounterDef{
	{ID: authsession.MetricLoginSuccess, Name: "authsession_login_success_total", Help: "Successful login attempts."},
	{ID: authsession.MetricLoginFailure, Name: "authsession_login_failure_total", Help: "Failed login attempts."},
	{ID: authsession.MetricLoginRateLimited, Name: "authsession_login_rate_limited_total", Help: "Login attempts that exhausted the rate-limit retry budget."},
	{ID: authsession.MetricRegisterSuccess, Name: "authsession_register_success_total", Help: "Successful account registrations."},
	{ID: authsession.MetricRegisterFailure, Name: "authsession_register_failure_total", Help: "Failed account registrations."},
	{ID: authsession.MetricVerifySuccess, Name: "authsession_verify_success_total", Help: "Successful startup verifications."},
	{ID: authsession.MetricVerifyFailure, Name: "authsession_verify_failure_total", Help: "Failed startup verifications."},
	{ID: authsession.MetricVerifySafetyTimeout, Name: "authsession_verify_safety_timeout_total", Help: "Verifications that hit the loading safety timeout."},
	{ID: authsession.MetricRefreshSuccess, Name: "authsession_refresh_success_total", Help: "Successful refresh cycles."},
	{ID: authsession.MetricRefreshFailure, Name: "authsession_refresh_failure_total", Help: "Refresh cycles failed on network or rate-limit exhaustion."},
	{ID: authsession.MetricRefreshDeduped, Name: "authsession_refresh_deduped_total", Help: "Refresh callers coalesced into an in-flight cycle."},
	{ID: authsession.MetricRefreshRateLimited, Name: "authsession_refresh_rate_limited_total", Help: "Refresh cycles that exhausted the backoff budget under 429."},
	{ID: authsession.MetricRefreshExpired, Name: "authsession_refresh_expired_total", Help: "Refresh cycles terminated by a rejected refresh credential."},
	{ID: authsession.MetricRefreshStale, Name: "authsession_refresh_stale_total", Help: "Refresh results discarded because the session epoch moved."},
	{ID: authsession.MetricRequestReplayed, Name: "authsession_request_replayed_total", Help: "Requests replayed once after a refresh."},
	{ID: authsession.MetricRequestRateLimited, Name: "authsession_request_rate_limited_total", Help: "Authenticated requests answered 429."},
	{ID: authsession.MetricMonitorRenewTriggered, Name: "authsession_monitor_renew_triggered_total", Help: "Proactive renewals triggered by the expiration monitor."},
	{ID: authsession.MetricMonitorDecodeSkipped, Name: "authsession_monitor_decode_skipped_total", Help: "Monitor cycles skipped on undecodable tokens."},
	{ID: authsession.MetricSessionInvalidated, Name: "authsession_session_invalidated_total", Help: "Forced session invalidations."},
	{ID: authsession.MetricLogout, Name: "authsession_logout_total", Help: "Explicit logout operations."},
}
