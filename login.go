package authsession

import (
	"context"
	"errors"

	"github.com/platefeed/authsession/httpapi"
	"github.com/platefeed/authsession/internal/flows"
)

// Login describes the login operation and its observable behavior.
//
// Login exchanges credentials for an authenticated session. Rate-limit
// responses are retried a bounded number of times within a wall-clock
// budget (see LoginConfig); validation failures surface as ErrValidation
// with the server message and mutate nothing.
func (m *Manager) Login(ctx context.Context, username, password string) (*UserProfile, error) {
	deps := m.deps.Login
	deps.Call = func(ctx context.Context) (*httpapi.LoginResult, error) {
		return m.api.Login(ctx, username, password)
	}
	return m.authenticate(ctx, deps, "login", MetricLoginSuccess, MetricLoginFailure)
}

// Register describes the register operation and its observable behavior.
//
// Register creates an account and establishes a session for it, with the
// same retry and failure semantics as Login.
func (m *Manager) Register(ctx context.Context, input RegisterInput) (*UserProfile, error) {
	deps := m.deps.Login
	deps.Call = func(ctx context.Context) (*httpapi.LoginResult, error) {
		return m.api.Register(ctx, input)
	}
	return m.authenticate(ctx, deps, "register", MetricRegisterSuccess, MetricRegisterFailure)
}

func (m *Manager) authenticate(
	ctx context.Context,
	deps flows.LoginDeps,
	reason string,
	successMetric, failureMetric MetricID,
) (*UserProfile, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if m.state == StateAuthenticated || m.state == StateAuthenticating {
		m.mu.Unlock()
		return nil, ErrAlreadyAuthenticated
	}
	// A fresh authentication supersedes anything still in flight from
	// the previous session.
	m.epoch++
	if m.attempt != nil {
		m.attempt.resolve("", ErrSessionInvalidated)
		m.attempt = nil
	}
	m.setStateLocked(StateAuthenticating, reason)
	m.mu.Unlock()

	result := flows.RunLogin(ctx, deps)
	if result.Failure != flows.LoginFailureNone {
		m.mu.Lock()
		m.setStateLocked(StateAnonymous, reason+" failed")
		m.mu.Unlock()
		m.metricInc(failureMetric)
		return nil, m.mapLoginFailure(result)
	}

	m.mu.Lock()
	m.store.Set(ctx, result.Payload.AccessToken)
	user := result.Payload.User
	m.user = &user
	m.loading = false
	// A successful login is its own verification; the startup verifier
	// must not re-run against this session.
	m.verified = true
	m.setStateLocked(StateAuthenticated, reason)
	m.startMonitorLocked()
	m.mu.Unlock()

	m.metricInc(successMetric)
	m.emit(EventLoggedIn, reason)

	profile := user
	return &profile, nil
}

func (m *Manager) mapLoginFailure(result flows.LoginResult) error {
	switch result.Failure {
	case flows.LoginFailureRateLimited:
		m.metricInc(MetricLoginRateLimited)
		return errors.Join(ErrLoginRateLimited, ErrRateLimited, result.Err)
	case flows.LoginFailureValidation:
		return errors.Join(ErrValidation, result.Err)
	default:
		return errors.Join(ErrNetworkFailure, result.Err)
	}
}
