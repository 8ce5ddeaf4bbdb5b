package authsession

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the session manager.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshExpired is an exported constant or variable used by the session manager.
	ErrRefreshExpired = errors.New("refresh credential expired")
	// ErrRateLimited is an exported constant or variable used by the session manager.
	ErrRateLimited = errors.New("rate limited")
	// ErrLoginRateLimited is an exported constant or variable used by the session manager.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshAttemptsExceeded is an exported constant or variable used by the session manager.
	ErrRefreshAttemptsExceeded = errors.New("refresh attempts exceeded")
	// ErrNetworkFailure is an exported constant or variable used by the session manager.
	ErrNetworkFailure = errors.New("network failure")
	// ErrValidation is an exported constant or variable used by the session manager.
	ErrValidation = errors.New("validation failed")
	// ErrSessionInvalidated is an exported constant or variable used by the session manager.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrManagerClosed is an exported constant or variable used by the session manager.
	ErrManagerClosed = errors.New("session manager closed")
	// ErrAlreadyAuthenticated is an exported constant or variable used by the session manager.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
)
