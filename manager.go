package authsession

import (
	"context"
	"sync"

	"github.com/platefeed/authsession/httpapi"
	"github.com/platefeed/authsession/internal/flows"
	"github.com/platefeed/authsession/token"
	"go.uber.org/zap"
)

// Manager defines a public type used by authsession APIs.
//
// Manager instances are intended to be configured during initialization through [Builder.Build] and then shared; all methods are safe for concurrent use. Production code constructs one Manager per backend (see the package documentation on singleton lifetime).
type Manager struct {
	config  Config
	logger  *zap.Logger
	api     *httpapi.Client
	store   *token.Store
	metrics *Metrics
	events  *eventDispatcher
	bus     *ChannelSink
	deps    flows.Deps

	mu       sync.Mutex
	state    SessionState
	user     *UserProfile
	loading  bool
	verified bool
	// epoch is bumped on every login and teardown. A refresh attempt
	// records the epoch it started under; a resolution arriving after
	// the epoch moved is discarded instead of resurrecting stale
	// credentials.
	epoch   uint64
	attempt *refreshAttempt
	monitor *expirationMonitor
	closed  bool
}

// State describes the state operation and its observable behavior.
//
// State does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the current access token, or "" when anonymous.
//
// Token does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Token() string {
	return m.store.Get()
}

// CurrentUser returns a copy of the authenticated profile, or nil.
//
// CurrentUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) CurrentUser() *UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Loading reports whether startup verification is still pending.
//
// Loading does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := SessionSnapshot{
		State:           m.state,
		Token:           m.store.Get(),
		Loading:         m.loading,
		RefreshInFlight: m.attempt != nil,
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// Events returns the session event bus channel. Events are delivered
// asynchronously and dropped under backpressure (see EventConfig).
//
// Events does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Events() <-chan Event {
	return m.bus.Events()
}

// EventsDropped describes the eventsdropped operation and its observable behavior.
//
// EventsDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) EventsDropped() uint64 {
	if m == nil {
		return 0
	}
	var n uint64
	if m.events != nil {
		n += m.events.Dropped()
	}
	if m.bus != nil {
		n += m.bus.Dropped()
	}
	return n
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

func (m *Manager) metricInc(id MetricID) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.Inc(id)
}

// Logout describes the logout operation and its observable behavior.
//
// Logout runs the LOGGING_OUT transition: a best-effort server-side
// invalidation of the refresh credential (failure ignored) followed by
// unconditional local teardown — token slot cleared, expiration monitor
// stopped, pending refresh waiters failed.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.state == StateAnonymous {
		m.mu.Unlock()
		return nil
	}
	tok := m.store.Get()
	m.setStateLocked(StateLoggingOut, "logout")
	m.mu.Unlock()

	flows.RunLogout(ctx, tok, m.deps.Logout)

	m.teardown(ctx, "logout")
	m.metricInc(MetricLogout)
	m.emit(EventLoggedOut, "logout")
	return nil
}

// Close releases the Manager's background resources: the expiration
// monitor and the event dispatcher. The persisted token is left in place
// so a restarted process can resume the session.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Close() {
	if m == nil {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	mon := m.monitor
	m.monitor = nil
	if m.attempt != nil {
		m.attempt.resolve("", ErrManagerClosed)
		m.attempt = nil
	}
	m.mu.Unlock()

	if mon != nil {
		mon.stop()
	}
	if m.events != nil {
		m.events.Close()
	}
}

// invalidate forces the session into ANONYMOUS. Raised by the refresh
// coordinator on a rejected refresh credential and by the interceptor when
// a request hits 401 with no token to refresh from. Silent but complete:
// no error surfaces beyond the event, and the session always lands in a
// renderable anonymous state.
func (m *Manager) invalidate(ctx context.Context, reason string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	wasAnonymous := m.state == StateAnonymous
	if !wasAnonymous {
		m.setStateLocked(StateLoggingOut, reason)
	}
	tok := m.store.Get()
	m.mu.Unlock()

	if !wasAnonymous {
		flows.RunLogout(ctx, tok, m.deps.Logout)
		m.teardown(ctx, reason)
	}
	m.metricInc(MetricSessionInvalidated)
	m.emit(EventSessionInvalidated, reason)
}

// teardown is the unconditional local half of logout. It must leave no
// dangling timers and no stale credentials regardless of what was in
// flight.
func (m *Manager) teardown(ctx context.Context, reason string) {
	m.mu.Lock()
	m.epoch++
	if m.attempt != nil {
		m.attempt.resolve("", ErrSessionInvalidated)
		m.attempt = nil
	}
	mon := m.monitor
	m.monitor = nil
	m.user = nil
	m.loading = false
	m.verified = false
	m.store.Clear(ctx)
	m.setStateLocked(StateAnonymous, reason)
	m.mu.Unlock()

	if mon != nil {
		mon.stop()
	}
}

// setStateLocked transitions the state machine. Caller holds m.mu.
func (m *Manager) setStateLocked(next SessionState, reason string) {
	if m.state == next {
		return
	}
	prev := m.state
	m.state = next
	m.logger.Debug("authsession: state transition",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
		zap.String("reason", reason),
	)

	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}
	if m.events != nil {
		m.events.Emit(context.Background(), newEvent(EventStateChanged, next, userID, reason))
	}
}

func (m *Manager) emit(kind EventKind, reason string) {
	if m.events == nil {
		return
	}

	m.mu.Lock()
	state := m.state
	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}
	m.mu.Unlock()

	m.events.Emit(context.Background(), newEvent(kind, state, userID, reason))
}

// startMonitorLocked launches the expiration monitor. Caller holds m.mu
// and has already established both a token and an authenticated user.
func (m *Manager) startMonitorLocked() {
	if !m.config.Monitor.Enabled || m.monitor != nil {
		return
	}
	m.monitor = newExpirationMonitor(
		m.config.Monitor,
		m.store.Get,
		m.renewInBackground,
		m.metrics,
		m.logger,
	)
	m.monitor.start()
}

// renewInBackground is the monitor's fire-and-forget renewal hook. Errors
// are logged, not surfaced; the request interceptor remains the
// authoritative fallback when proactive renewal fails.
func (m *Manager) renewInBackground() {
	go func() {
		if _, err := m.Refresh(context.Background()); err != nil {
			m.logger.Warn("authsession: proactive refresh failed", zap.Error(err))
		}
	}()
}
