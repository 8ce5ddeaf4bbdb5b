package authsession

import (
	"errors"
	"testing"

	"github.com/platefeed/authsession/token"
)

func TestLogoutClearsEverything(t *testing.T) {
	b := newFakeBackend(t)
	vault := token.NewMemoryVault()
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(vault)
	})

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := m.Logout(t.Context()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if got := m.State(); got != StateAnonymous {
		t.Fatalf("expected anonymous state, got %v", got)
	}
	if m.Token() != "" {
		t.Fatal("logout must clear the in-memory token")
	}
	if m.CurrentUser() != nil {
		t.Fatal("logout must clear the user")
	}
	if persisted, _ := vault.Load(t.Context()); persisted != "" {
		t.Fatal("logout must clear the persisted token")
	}

	_, _, _, logout := b.counts()
	if logout != 1 {
		t.Fatalf("expected one server-side logout call, got %d", logout)
	}
	awaitEvent(t, m, EventLoggedOut)
}

func TestLogoutSurvivesServerFailure(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	b.srv.CloseClientConnections()
	b.srv.Close()

	if err := m.Logout(t.Context()); err != nil {
		t.Fatalf("logout must succeed locally even when the server is gone: %v", err)
	}
	if got := m.State(); got != StateAnonymous {
		t.Fatalf("expected anonymous state, got %v", got)
	}
	if m.Token() != "" {
		t.Fatal("logout must clear the token")
	}
}

func TestLogoutWhenAnonymousIsNoOp(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if err := m.Logout(t.Context()); err != nil {
		t.Fatalf("anonymous logout must be a no-op: %v", err)
	}

	_, _, _, logout := b.counts()
	if logout != 0 {
		t.Fatalf("no server call expected, got %d", logout)
	}
}

func TestLoginAfterLogout(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := m.Logout(t.Context()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if got := m.State(); got != StateAuthenticated {
		t.Fatalf("expected authenticated state, got %v", got)
	}
}

func TestCloseLeavesVaultIntact(t *testing.T) {
	b := newFakeBackend(t)
	vault := token.NewMemoryVault()
	m := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(vault)
	})

	if _, err := m.Login(t.Context(), "ana", "x"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	tok := m.Token()
	m.Close()

	if persisted, _ := vault.Load(t.Context()); persisted != tok {
		t.Fatal("close must leave the persisted token for the next process")
	}

	// A fresh manager over the same vault resumes the session.
	next := newTestManager(t, b, func(builder *Builder) {
		builder.WithVault(vault)
	})
	if err := next.Verify(t.Context()); err != nil {
		t.Fatalf("resumed verify failed: %v", err)
	}
	if got := next.State(); got != StateAuthenticated {
		t.Fatalf("expected resumed session, got %v", got)
	}
}

func TestClosedManagerRejectsOperations(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b)
	m.Close()

	if _, err := m.Login(t.Context(), "ana", "x"); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected closed error from login, got %v", err)
	}
	if _, err := m.Refresh(t.Context()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected closed error from refresh, got %v", err)
	}
	if err := m.Verify(t.Context()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected closed error from verify, got %v", err)
	}
	if err := m.Logout(t.Context()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected closed error from logout, got %v", err)
	}
	if _, err := m.Do(feedRequest(t, b)); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected closed error from do, got %v", err)
	}

	// Idempotent.
	m.Close()
}
