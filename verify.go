package authsession

import (
	"context"
	"errors"
	"time"

	"github.com/platefeed/authsession/internal/flows"
)

// Verify describes the verify operation and its observable behavior.
//
// Verify runs the startup session check: when a persisted token exists it
// is validated against the backend and, on success, the authenticated
// user state is established. Guarded by an idempotency flag, so repeated
// invocation is a no-op once a verification has concluded. Loading() is
// guaranteed to turn false within the configured safety timeout under
// every outcome, including no network response at all.
func (m *Manager) Verify(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.verified {
		m.mu.Unlock()
		return nil
	}
	tok := m.store.Get()
	if tok == "" {
		// Nothing persisted; the session starts anonymous and there is
		// nothing to re-check later.
		m.verified = true
		m.loading = false
		m.mu.Unlock()
		return nil
	}
	m.verified = true
	m.loading = true
	epoch := m.epoch
	m.setStateLocked(StateAuthenticating, "verify")
	m.mu.Unlock()

	// The safety valve: whatever happens below, the UI must never hang
	// on Loading() forever.
	timer := time.AfterFunc(m.config.Verify.SafetyTimeout, func() {
		m.mu.Lock()
		stuck := m.loading
		m.loading = false
		m.mu.Unlock()
		if stuck {
			m.metricInc(MetricVerifySafetyTimeout)
			m.logger.Warn("authsession: verify safety timeout elapsed before a response")
		}
	})
	defer timer.Stop()

	result := flows.RunVerify(ctx, tok, m.deps.Verify)

	switch result.Failure {
	case flows.VerifyFailureNone:
		m.mu.Lock()
		if m.epoch != epoch {
			m.loading = false
			m.mu.Unlock()
			return ErrSessionInvalidated
		}
		user := *result.Profile
		m.user = &user
		m.loading = false
		m.setStateLocked(StateAuthenticated, "verify")
		m.startMonitorLocked()
		m.mu.Unlock()
		m.metricInc(MetricVerifySuccess)
		m.emit(EventLoggedIn, "verify")
		return nil

	case flows.VerifyFailureUnauthorized:
		// The token was rejected and the refresh fallback could not
		// rescue it; the session is cleared. When the refresh
		// credential itself was rejected the coordinator has already
		// torn the session down, which makes this a no-op.
		m.setLoadingFalse()
		m.metricInc(MetricVerifyFailure)
		m.invalidate(ctx, "startup verification rejected")
		return errors.Join(ErrUnauthorized, result.Err)

	case flows.VerifyFailureRateLimited:
		// Transient: keep the persisted token and allow a later retry.
		m.failVerifyRetryable()
		m.metricInc(MetricVerifyFailure)
		return errors.Join(ErrRateLimited, result.Err)

	default:
		m.failVerifyRetryable()
		m.metricInc(MetricVerifyFailure)
		return errors.Join(ErrNetworkFailure, result.Err)
	}
}

func (m *Manager) setLoadingFalse() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}

// failVerifyRetryable records a transient verify failure: the persisted
// token stays in place and the idempotency flag is reset so the caller
// may verify again once conditions improve.
func (m *Manager) failVerifyRetryable() {
	m.mu.Lock()
	m.loading = false
	m.verified = false
	m.setStateLocked(StateAnonymous, "verify unresolved")
	m.mu.Unlock()
}
