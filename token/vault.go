package token

import (
	"context"
	"errors"
	"sync"
)

// ErrVaultUnavailable is returned when the durable backing store cannot be
// reached. The in-memory token remains usable for the current process.
var ErrVaultUnavailable = errors.New("token vault unavailable")

// Vault is the durable slot holding the persisted access token.
// An empty string means no token is stored.
type Vault interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, tok string) error
	Clear(ctx context.Context) error
}

// MemoryVault is a process-local [Vault]. It does not survive restarts and
// exists for tests and short-lived tools.
type MemoryVault struct {
	mu  sync.Mutex
	tok string
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{}
}

func (v *MemoryVault) Load(context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tok, nil
}

func (v *MemoryVault) Save(_ context.Context, tok string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tok = tok
	return nil
}

func (v *MemoryVault) Clear(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tok = ""
	return nil
}
