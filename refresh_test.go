package authsession

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRefreshReplacesToken(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	before := m.Token()

	tok, err := m.Refresh(t.Context())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if tok == "" || tok == before {
		t.Fatalf("expected a fresh token, got %q", tok)
	}
	if got := m.Token(); got != tok {
		t.Fatalf("store holds %q, refresh returned %q", got, tok)
	}

	awaitEvent(t, m, EventRefreshed)
}

func TestRefreshBackoffDelaysIncrease(t *testing.T) {
	b := newFakeBackend(t)
	b.refreshQueue = []int{http.StatusTooManyRequests, http.StatusTooManyRequests}
	m := newTestManager(t, b)

	if _, err := m.Refresh(t.Context()); err != nil {
		t.Fatalf("refresh should succeed on the third attempt: %v", err)
	}

	stamps := b.refreshTimestamps()
	if len(stamps) != 3 {
		t.Fatalf("expected 3 refresh calls, got %d", len(stamps))
	}
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	if first < 10*time.Millisecond {
		t.Fatalf("first backoff too short: %v", first)
	}
	if second < first {
		t.Fatalf("backoff must not shrink: %v then %v", first, second)
	}
}

func TestRefreshAttemptBudgetBounded(t *testing.T) {
	b := newFakeBackend(t)
	b.refreshAlways = http.StatusTooManyRequests
	m := newTestManager(t, b)

	_, err := m.Refresh(t.Context())
	if !errors.Is(err, ErrRefreshAttemptsExceeded) {
		t.Fatalf("expected attempts-exceeded error, got %v", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected wrapped rate limit sentinel, got %v", err)
	}

	_, _, refresh, _ := b.counts()
	if refresh != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", refresh)
	}
}

func TestRefreshRejectedCredentialClearsSession(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	b.refreshAlways = http.StatusUnauthorized
	_, err := m.Refresh(t.Context())
	if !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expected refresh-expired error, got %v", err)
	}

	waitFor(t, time.Second, func() bool { return m.State() == StateAnonymous },
		"session must land anonymous after a rejected refresh credential")
	if m.Token() != "" {
		t.Fatal("rejected refresh must clear the token")
	}
	if m.CurrentUser() != nil {
		t.Fatal("rejected refresh must clear the user")
	}
	awaitEvent(t, m, EventSessionInvalidated)
}

func TestRefreshNetworkFailureKeepsSession(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	before := m.Token()

	b.refreshAlways = http.StatusInternalServerError
	_, err := m.Refresh(t.Context())
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if got := m.State(); got != StateAuthenticated {
		t.Fatalf("transient refresh failure must keep the session, got %v", got)
	}
	if got := m.Token(); got != before {
		t.Fatal("transient refresh failure must keep the token")
	}
}

func TestRefreshResultAfterLogoutDiscarded(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	gate := make(chan struct{})
	b.mu.Lock()
	b.refreshGate = gate
	b.mu.Unlock()

	resultCh := make(chan error, 1)
	go func() {
		_, err := m.Refresh(t.Context())
		resultCh <- err
	}()

	waitFor(t, time.Second, func() bool {
		_, _, refresh, _ := b.counts()
		return refresh == 1
	}, "refresh call should be in flight")

	if err := m.Logout(t.Context()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	// The waiter fails immediately; the network result arriving later is
	// discarded instead of resurrecting the session.
	if err := <-resultCh; !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("expected session-invalidated error, got %v", err)
	}
	close(gate)

	waitFor(t, time.Second, func() bool {
		return m.MetricsSnapshot().Counters[MetricRefreshStale] == 1
	}, "stale refresh result should be discarded")

	if m.Token() != "" {
		t.Fatal("stale refresh result must not restore a token")
	}
	if got := m.State(); got != StateAnonymous {
		t.Fatalf("expected anonymous state, got %v", got)
	}
}
