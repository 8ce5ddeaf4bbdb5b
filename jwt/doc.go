// Package jwt inspects access tokens issued by the Platefeed backend.
//
// The client never holds verification keys; tokens are decoded without
// signature validation, solely to read scheduling claims (expiry, subject).
// Authoritative validation always happens server-side on /auth/verify.
package jwt
