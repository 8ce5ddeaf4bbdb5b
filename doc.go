// Package authsession manages the authenticated session lifecycle for
// clients of the Platefeed REST backend: access-token storage, proactive
// expiry-driven renewal, 401-driven refresh with single-flight
// de-duplication, bounded backoff under rate limiting, transparent request
// replay, startup verification, and an enumerated session event bus.
//
// The package is designed for concurrent client workloads: Manager methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authsession is the public surface. It exposes [Manager], [Builder],
// [Config], and value types (SessionSnapshot, Event, MetricsSnapshot,
// etc.). Flow orchestration and backoff scheduling live under internal/
// and are never exported. The wire client lives in [httpapi], the token
// slot in [token], and claim inspection in [jwt]
// (github.com/platefeed/authsession/jwt).
//
// # What this package must NOT do
//
//   - Read or store the refresh credential. It is an HTTP-only cookie
//     carried opaquely by the shared client's cookie jar.
//   - Issue more than one concurrent refresh network call per Manager.
//   - Retry any authenticated request more than once.
//
// # Singleton lifetime
//
// Token identity must be process-wide consistent, so production code
// constructs exactly one Manager per backend and shares it. The Manager is
// an explicit, dependency-injected instance rather than module-level
// state, which is what allows tests to run several independent sessions
// in one process.
package authsession
