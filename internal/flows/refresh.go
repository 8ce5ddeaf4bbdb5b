package flows

import (
	"context"
	"errors"

	"github.com/platefeed/authsession/httpapi"
	"github.com/platefeed/authsession/internal/backoff"
)

// RefreshFailureKind classifies refresh flow failures for root-level
// mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	// RefreshFailureExpired means the refresh credential itself was
	// rejected. Terminal for the session.
	RefreshFailureExpired
	// RefreshFailureRateLimited means the attempt budget ran out while
	// the backend kept answering 429. Not terminal for the session.
	RefreshFailureRateLimited
	// RefreshFailureNetwork covers transport errors and 5xx responses.
	// Not terminal for the session.
	RefreshFailureNetwork
)

// RefreshResult carries either the new access token or failure metadata.
type RefreshResult struct {
	Failure  RefreshFailureKind
	Err      error
	Attempts int
	Token    string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Call    func(ctx context.Context) (string, error)
	Backoff backoff.Policy
	Warn    func(msg string, args ...any)
}

// RunRefresh executes one refresh cycle. Rate-limit responses are retried
// on the capped exponential schedule; all other outcomes resolve the cycle
// on the first response. The caller (the coordinator) guarantees at most
// one RunRefresh is executing per process.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	attempt := 0
	for {
		tok, err := deps.Call(ctx)
		if err == nil {
			return RefreshResult{Token: tok, Attempts: attempt + 1}
		}

		switch {
		case errors.Is(err, httpapi.ErrUnauthorized):
			return RefreshResult{Failure: RefreshFailureExpired, Err: err, Attempts: attempt + 1}
		case errors.Is(err, httpapi.ErrRateLimited):
			if deps.Backoff.Exhausted(attempt + 1) {
				return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, Attempts: attempt + 1}
			}
			if deps.Warn != nil {
				deps.Warn("authsession: refresh rate limited, backing off", "attempt", attempt+1)
			}
			if sleepErr := backoff.Sleep(ctx, deps.Backoff.Delay(attempt)); sleepErr != nil {
				return RefreshResult{Failure: RefreshFailureNetwork, Err: sleepErr, Attempts: attempt + 1}
			}
			attempt++
		default:
			return RefreshResult{Failure: RefreshFailureNetwork, Err: err, Attempts: attempt + 1}
		}
	}
}
