package authsession

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/platefeed/authsession/internal/backoff"
)

// Do describes the do operation and its observable behavior.
//
// Do sends an authenticated request through the shared HTTP client (and
// its cookie jar), attaching the current bearer token. On a 401 the
// request is refreshed-and-replayed exactly once; a second 401 propagates
// to the caller unchanged. On a 429 a short fixed delay is applied and
// the response propagates unchanged — rate limiting is never treated as
// an authentication failure. The caller owns the returned response body.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	return m.intercept(req, func(r *http.Request) (*http.Response, error) {
		return m.api.HTTPClient().Do(r)
	})
}

// RoundTripper wraps base (nil means http.DefaultTransport) with the same
// intercept-refresh-replay behavior as Do, for callers that want to hand
// an *http.Client to code they do not control. Note such a client
// bypasses the shared cookie jar unless one is attached to it.
//
// RoundTripper does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) RoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &interceptTransport{manager: m, base: base}
}

type interceptTransport struct {
	manager *Manager
	base    http.RoundTripper
}

func (t *interceptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.manager.intercept(req, t.base.RoundTrip)
}

func (m *Manager) intercept(req *http.Request, send func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrManagerClosed
	}

	ctx := req.Context()

	// Buffer the body up front so a single replay is always possible.
	if req.Body != nil && req.GetBody == nil {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, errors.Join(ErrNetworkFailure, err)
		}
		req.Body = io.NopCloser(bytes.NewReader(data))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	tok := m.store.Get()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := send(req)
	if err != nil {
		return nil, errors.Join(ErrNetworkFailure, err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		m.metricInc(MetricRequestRateLimited)
		_ = backoff.Sleep(ctx, m.config.Interceptor.RateLimitDelay)
		return resp, nil

	case http.StatusUnauthorized:
		if tok == "" {
			// Nothing to refresh from. Raise the invalidation signal
			// and let the 401 through.
			m.invalidate(ctx, "unauthenticated request rejected")
			return resp, nil
		}

		newTok, refreshErr := m.Refresh(ctx)
		if refreshErr != nil {
			// The original 401 is the caller's answer; the refresh
			// outcome (including a forced logout on ErrRefreshExpired)
			// has already been handled by the coordinator.
			return resp, nil
		}

		// Replay exactly once with the new token.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		retry := req.Clone(ctx)
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, errors.Join(ErrNetworkFailure, bodyErr)
			}
			retry.Body = body
		}
		retry.Header.Set("Authorization", "Bearer "+newTok)

		replayed, replayErr := send(retry)
		if replayErr != nil {
			return nil, errors.Join(ErrNetworkFailure, replayErr)
		}
		m.metricInc(MetricRequestReplayed)
		return replayed, nil

	default:
		return resp, nil
	}
}
