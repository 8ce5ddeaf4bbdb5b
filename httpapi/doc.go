// Package httpapi is the thin REST client for the Platefeed auth endpoints.
//
// It speaks the wire contract (login, register, verify, refresh, logout)
// and classifies HTTP failures into a small error set; all retry, backoff,
// and session policy lives in the root authsession package. The refresh
// credential is an HTTP-only cookie carried by the client's cookie jar and
// is never read or stored by this package.
package httpapi
