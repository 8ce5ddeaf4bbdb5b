package flows

import (
	"context"
	"errors"
	"time"

	"github.com/platefeed/authsession/httpapi"
	"github.com/platefeed/authsession/internal/backoff"
)

// VerifyFailureKind classifies verify flow failures for root-level mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	// VerifyFailureUnauthorized means the token is invalid and the
	// refresh fallback also failed. The session must be cleared.
	VerifyFailureUnauthorized
	// VerifyFailureRateLimited means the backend still answered 429
	// after the single delayed retry.
	VerifyFailureRateLimited
	// VerifyFailureNetwork covers transport errors and 5xx responses.
	VerifyFailureNetwork
)

// VerifyResult carries the verified profile, the token it was verified
// against (which differs from the input when a refresh happened), or
// failure metadata.
type VerifyResult struct {
	Failure VerifyFailureKind
	Err     error
	Token   string
	Profile *httpapi.Profile
}

// VerifyDeps captures verify flow dependencies. Refresh is the
// coordinator entry point so a verify-triggered refresh still dedupes
// against every other refresh caller.
type VerifyDeps struct {
	Call           func(ctx context.Context, tok string) (*httpapi.Profile, error)
	Refresh        func(ctx context.Context) (string, error)
	RateLimitDelay time.Duration
	Warn           func(msg string, args ...any)
}

// RunVerify validates tok against the backend. A 429 schedules exactly one
// fixed-delay retry; a 401 delegates to the refresh coordinator once and
// re-verifies with the new token on success.
func RunVerify(ctx context.Context, tok string, deps VerifyDeps) VerifyResult {
	profile, err := deps.Call(ctx, tok)

	if errors.Is(err, httpapi.ErrRateLimited) {
		if deps.Warn != nil {
			deps.Warn("authsession: verify rate limited, retrying once")
		}
		if sleepErr := backoff.Sleep(ctx, deps.RateLimitDelay); sleepErr != nil {
			return VerifyResult{Failure: VerifyFailureNetwork, Err: sleepErr, Token: tok}
		}
		profile, err = deps.Call(ctx, tok)
		if errors.Is(err, httpapi.ErrRateLimited) {
			return VerifyResult{Failure: VerifyFailureRateLimited, Err: err, Token: tok}
		}
	}

	if errors.Is(err, httpapi.ErrUnauthorized) {
		newTok, refreshErr := deps.Refresh(ctx)
		if refreshErr != nil {
			return VerifyResult{Failure: VerifyFailureUnauthorized, Err: refreshErr, Token: tok}
		}
		tok = newTok
		profile, err = deps.Call(ctx, tok)
		if errors.Is(err, httpapi.ErrUnauthorized) {
			return VerifyResult{Failure: VerifyFailureUnauthorized, Err: err, Token: tok}
		}
	}

	if err != nil {
		return VerifyResult{Failure: VerifyFailureNetwork, Err: err, Token: tok}
	}
	return VerifyResult{Profile: profile, Token: tok}
}
