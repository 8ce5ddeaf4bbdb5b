package authsession

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/platefeed/authsession/internal/flows"
	"go.uber.org/zap"
)

// refreshAttempt is the single source of truth for "a refresh is in
// progress". Every concurrent caller awaits the same done channel instead
// of issuing its own network call, which makes the de-duplication
// guarantee a data-structure invariant rather than a side effect of flag
// checking.
type refreshAttempt struct {
	id    string
	epoch uint64
	done  chan struct{}
	once  sync.Once

	// written exactly once before done closes
	token string
	err   error
}

func newRefreshAttempt(epoch uint64) *refreshAttempt {
	return &refreshAttempt{
		id:    uuid.NewString(),
		epoch: epoch,
		done:  make(chan struct{}),
	}
}

// resolve publishes the cycle outcome. Safe to call more than once; the
// first call wins (logout resolves pending attempts before the network
// cycle finishes).
func (a *refreshAttempt) resolve(tok string, err error) {
	a.once.Do(func() {
		a.token = tok
		a.err = err
		close(a.done)
	})
}

// wait blocks until the attempt resolves or the caller's context ends.
// A caller timing out does not cancel the shared cycle.
func (a *refreshAttempt) wait(ctx context.Context) (string, error) {
	select {
	case <-a.done:
		return a.token, a.err
	case <-ctx.Done():
		return "", errors.Join(ErrNetworkFailure, ctx.Err())
	}
}

// Refresh mints a new access token through the backend refresh endpoint.
//
// At most one refresh network cycle is outstanding per Manager: when a
// cycle is already in flight the caller joins its result instead of
// issuing a second call. A 429 inside the cycle is retried with capped
// exponential backoff; a 401 means the refresh credential itself was
// rejected, which clears the session and raises EventSessionInvalidated.
// Other network failures fail this cycle's waiters without touching the
// session.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}
	if m.attempt != nil {
		a := m.attempt
		m.mu.Unlock()
		m.metricInc(MetricRefreshDeduped)
		return a.wait(ctx)
	}

	a := newRefreshAttempt(m.epoch)
	m.attempt = a
	m.mu.Unlock()

	go m.runRefresh(a)
	return a.wait(ctx)
}

// runRefresh executes one refresh cycle on behalf of every waiter. It
// deliberately runs under its own context: the cycle is shared state and
// must not die with whichever caller happened to start it.
func (m *Manager) runRefresh(a *refreshAttempt) {
	ctx := context.Background()
	if m.config.Refresh.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Refresh.CycleTimeout)
		defer cancel()
	}

	result := flows.RunRefresh(ctx, m.deps.Refresh)

	m.mu.Lock()
	if m.attempt == a {
		m.attempt = nil
	}
	if m.epoch != a.epoch {
		// A logout or fresh login happened mid-cycle. The session was
		// already torn down or replaced; applying this result would
		// resurrect stale credentials.
		m.mu.Unlock()
		m.metricInc(MetricRefreshStale)
		m.logger.Debug("authsession: discarding stale refresh result", zap.String("attempt", a.id))
		a.resolve("", ErrSessionInvalidated)
		return
	}

	switch result.Failure {
	case flows.RefreshFailureNone:
		m.store.Set(ctx, result.Token)
		m.mu.Unlock()
		m.metricInc(MetricRefreshSuccess)
		m.emit(EventRefreshed, "refresh")
		a.resolve(result.Token, nil)

	case flows.RefreshFailureExpired:
		m.mu.Unlock()
		m.metricInc(MetricRefreshExpired)
		a.resolve("", errors.Join(ErrRefreshExpired, result.Err))
		m.invalidate(ctx, "refresh credential rejected")

	case flows.RefreshFailureRateLimited:
		m.mu.Unlock()
		m.metricInc(MetricRefreshRateLimited)
		m.metricInc(MetricRefreshFailure)
		a.resolve("", errors.Join(ErrRefreshAttemptsExceeded, ErrRateLimited, result.Err))

	default:
		m.mu.Unlock()
		m.metricInc(MetricRefreshFailure)
		a.resolve("", errors.Join(ErrNetworkFailure, result.Err))
	}
}
