package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Call func(ctx context.Context, tok string) error
	Warn func(msg string, args ...any)
}

// RunLogout asks the backend to invalidate the refresh credential.
// Best-effort: failures are logged and swallowed so local teardown always
// proceeds.
func RunLogout(ctx context.Context, tok string, deps LogoutDeps) {
	if deps.Call == nil {
		return
	}
	if err := deps.Call(ctx, tok); err != nil && deps.Warn != nil {
		deps.Warn("authsession: server-side logout failed", "error", err)
	}
}
