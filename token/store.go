package token

import (
	"context"
	"sync"
)

// Binding observes every token change. The session manager registers one
// that rewrites the shared HTTP client's default Authorization header, so
// a Set or Clear is immediately visible to all outbound requests.
type Binding func(tok string)

// Store is the single process-wide owner of the current access token.
// It performs no validation of token contents.
type Store struct {
	mu      sync.RWMutex
	current string

	vault   Vault
	binding Binding
	warn    func(msg string, args ...any)
}

// NewStore creates a store persisting through vault. binding and warn may
// be nil.
func NewStore(vault Vault, binding Binding, warn func(msg string, args ...any)) *Store {
	if vault == nil {
		vault = NewMemoryVault()
	}
	return &Store{
		vault:   vault,
		binding: binding,
		warn:    warn,
	}
}

// Get returns the current access token, or "" when anonymous.
func (s *Store) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// AuthorizationValue renders the bearer header value for the current
// token, or "" when anonymous.
func (s *Store) AuthorizationValue() string {
	tok := s.Get()
	if tok == "" {
		return ""
	}
	return "Bearer " + tok
}

// Set replaces the current token, persists it, and updates the binding.
// A vault write failure is logged and swallowed: the in-memory token stays
// authoritative for this process and persistence recovers on the next Set.
func (s *Store) Set(ctx context.Context, tok string) {
	s.mu.Lock()
	s.current = tok
	binding := s.binding
	s.mu.Unlock()

	if binding != nil {
		binding(tok)
	}
	if err := s.vault.Save(ctx, tok); err != nil && s.warn != nil {
		s.warn("authsession: token vault save failed", "error", err)
	}
}

// Clear removes the token from memory, vault, and binding.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.current = ""
	binding := s.binding
	s.mu.Unlock()

	if binding != nil {
		binding("")
	}
	if err := s.vault.Clear(ctx); err != nil && s.warn != nil {
		s.warn("authsession: token vault clear failed", "error", err)
	}
}

// Hydrate loads the persisted token into memory at startup and returns it.
// An unreadable vault hydrates to anonymous.
func (s *Store) Hydrate(ctx context.Context) (string, error) {
	tok, err := s.vault.Load(ctx)
	if err != nil {
		if s.warn != nil {
			s.warn("authsession: token vault load failed", "error", err)
		}
		return "", err
	}

	s.mu.Lock()
	s.current = tok
	binding := s.binding
	s.mu.Unlock()

	if binding != nil && tok != "" {
		binding(tok)
	}
	return tok, nil
}
