package authsession

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestVerifyWithoutTokenIsAnonymous(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if err := m.Verify(t.Context()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got := m.State(); got != StateAnonymous {
		t.Fatalf("expected anonymous state, got %v", got)
	}
	if m.Loading() {
		t.Fatal("loading must be false with nothing to verify")
	}

	_, verify, _, _ := b.counts()
	if verify != 0 {
		t.Fatalf("no network call expected, got %d", verify)
	}
}

func TestVerifyRestoresPersistedSession(t *testing.T) {
	b := newFakeBackend(t)
	tok := b.issue()
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, tok))
	})

	if got := m.Token(); got != tok {
		t.Fatalf("expected hydrated token, got %q", got)
	}
	if err := m.Verify(t.Context()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got := m.State(); got != StateAuthenticated {
		t.Fatalf("expected authenticated state, got %v", got)
	}
	if cu := m.CurrentUser(); cu == nil || cu.Username != "ana" {
		t.Fatalf("unexpected current user %+v", cu)
	}
	if m.Loading() {
		t.Fatal("loading must be false after verify")
	}
}

func TestVerifyIdempotent(t *testing.T) {
	b := newFakeBackend(t)
	tok := b.issue()
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, tok))
	})

	if err := m.Verify(t.Context()); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := m.Verify(t.Context()); err != nil {
		t.Fatalf("repeated verify failed: %v", err)
	}

	_, verify, _, _ := b.counts()
	if verify != 1 {
		t.Fatalf("expected a single verify call, got %d", verify)
	}
}

func TestVerifyStaleTokenRefreshesOnce(t *testing.T) {
	b := newFakeBackend(t)
	stale := b.issue()
	b.expireToken()
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, stale))
	})

	if err := m.Verify(t.Context()); err != nil {
		t.Fatalf("verify should recover through refresh: %v", err)
	}
	if got := m.State(); got != StateAuthenticated {
		t.Fatalf("expected authenticated state, got %v", got)
	}
	if m.Token() == stale {
		t.Fatal("token should have been replaced by the refresh")
	}

	_, verify, refresh, _ := b.counts()
	if refresh != 1 {
		t.Fatalf("expected one refresh call, got %d", refresh)
	}
	if verify != 2 {
		t.Fatalf("expected verify before and after refresh, got %d", verify)
	}
}

func TestVerifyRejectedTokenClearsSession(t *testing.T) {
	b := newFakeBackend(t)
	stale := b.issue()
	b.expireToken()
	b.refreshAlways = http.StatusUnauthorized
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, stale))
	})

	err := m.Verify(t.Context())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if got := m.State(); got != StateAnonymous {
		t.Fatalf("expected anonymous state, got %v", got)
	}
	if m.Token() != "" {
		t.Fatal("rejected session must not keep a token")
	}

	awaitEvent(t, m, EventSessionInvalidated)
}

func TestVerifyRateLimitedRetriesOnceThenKeepsToken(t *testing.T) {
	b := newFakeBackend(t)
	tok := b.issue()
	b.verifyQueue = []int{http.StatusTooManyRequests, http.StatusTooManyRequests}
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, tok))
	})

	err := m.Verify(t.Context())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	_, verify, _, _ := b.counts()
	if verify != 2 {
		t.Fatalf("expected exactly one delayed retry, got %d calls", verify)
	}
	if got := m.Token(); got != tok {
		t.Fatal("transient failure must keep the persisted token")
	}

	// The idempotency flag resets on transient failures, so a later
	// attempt can still establish the session.
	if err := m.Verify(t.Context()); err != nil {
		t.Fatalf("verify retry after rate limit failed: %v", err)
	}
	if got := m.State(); got != StateAuthenticated {
		t.Fatalf("expected authenticated state, got %v", got)
	}
}

func TestVerifyRateLimitRecoversOnRetry(t *testing.T) {
	b := newFakeBackend(t)
	tok := b.issue()
	b.verifyQueue = []int{http.StatusTooManyRequests}
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, tok))
	})

	start := time.Now()
	if err := m.Verify(t.Context()); err != nil {
		t.Fatalf("verify should recover after the delayed retry: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("retry fired without the configured delay (%v)", elapsed)
	}

	_, verify, _, _ := b.counts()
	if verify != 2 {
		t.Fatalf("expected 2 verify calls, got %d", verify)
	}
}

func TestVerifyNetworkFailureKeepsToken(t *testing.T) {
	b := newFakeBackend(t)
	tok := b.issue()
	b.verifyQueue = []int{http.StatusInternalServerError}
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, tok))
	})

	err := m.Verify(t.Context())
	if !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if got := m.Token(); got != tok {
		t.Fatal("network failure must keep the persisted token")
	}
	if m.Loading() {
		t.Fatal("loading must settle after a failed verify")
	}
}

func TestVerifyLoadingSettlesWithinSafetyTimeout(t *testing.T) {
	b := newFakeBackend(t)
	tok := b.issue()
	b.verifyDelay = 900 * time.Millisecond // well past the safety timeout
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(seededVault(t, tok))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Verify(t.Context())
	}()

	waitFor(t, 200*time.Millisecond, m.Loading, "loading should rise while verify is in flight")
	waitFor(t, 700*time.Millisecond, func() bool { return !m.Loading() },
		"loading must settle before any response arrives")

	if m.MetricsSnapshot().Counters[MetricVerifySafetyTimeout] != 1 {
		t.Fatal("expected safety timeout counter")
	}
	wg.Wait()
}
