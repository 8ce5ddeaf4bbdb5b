package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry claim")

// ErrMalformed is returned when a token cannot be decoded at all.
var ErrMalformed = errors.New("malformed token")

// AccessClaims is the client-visible claim set of a Platefeed access token.
type AccessClaims struct {
	UID  string `json:"uid,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses tokenStr without verifying its signature and returns the
// embedded claims. The result must never be used for authorization
// decisions; it exists for expiry scheduling and diagnostics only.
func Decode(tokenStr string) (*AccessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithoutClaimsValidation(),
	)

	claims := &AccessClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of tokenStr.
func ExpiresAt(tokenStr string) (time.Time, error) {
	claims, err := Decode(tokenStr)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Remaining returns the lifetime left on tokenStr relative to now.
// A negative duration means the token is already expired.
func Remaining(tokenStr string, now time.Time) (time.Duration, error) {
	exp, err := ExpiresAt(tokenStr)
	if err != nil {
		return 0, err
	}
	return exp.Sub(now), nil
}
