package flows

import (
	"context"
	"errors"
	"time"

	"github.com/platefeed/authsession/httpapi"
	"github.com/platefeed/authsession/internal/backoff"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureValidation
	LoginFailureNetwork
)

// LoginResult carries either the issued credentials or failure metadata.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	Attempts int
	Payload  *httpapi.LoginResult
}

// LoginDeps captures login flow dependencies. Call is pre-bound to the
// credentials (or register input) by the root package.
type LoginDeps struct {
	Call         func(ctx context.Context) (*httpapi.LoginResult, error)
	Retry        backoff.Policy
	MaxTotalWait time.Duration
	Warn         func(msg string, args ...any)
}

// RunLogin executes one login or register call with bounded retries for
// rate-limit responses only. Every other failure is surfaced immediately;
// MaxTotalWait caps the whole retry window regardless of attempt budget.
func RunLogin(ctx context.Context, deps LoginDeps) LoginResult {
	if deps.MaxTotalWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.MaxTotalWait)
		defer cancel()
	}

	attempt := 0
	for {
		payload, err := deps.Call(ctx)
		if err == nil {
			return LoginResult{Payload: payload, Attempts: attempt + 1}
		}

		var vErr *httpapi.ValidationError
		switch {
		case errors.As(err, &vErr):
			return LoginResult{Failure: LoginFailureValidation, Err: err, Attempts: attempt + 1}
		case errors.Is(err, httpapi.ErrUnauthorized):
			// Bad credentials surface as a validation failure; there is
			// no session to refresh during login.
			return LoginResult{Failure: LoginFailureValidation, Err: err, Attempts: attempt + 1}
		case errors.Is(err, httpapi.ErrRateLimited):
			if deps.Retry.Exhausted(attempt + 1) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, Attempts: attempt + 1}
			}
			if deps.Warn != nil {
				deps.Warn("authsession: login rate limited, backing off", "attempt", attempt+1)
			}
			if sleepErr := backoff.Sleep(ctx, deps.Retry.Delay(attempt)); sleepErr != nil {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, Attempts: attempt + 1}
			}
			attempt++
		default:
			return LoginResult{Failure: LoginFailureNetwork, Err: err, Attempts: attempt + 1}
		}
	}
}
