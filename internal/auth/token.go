package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The backend signs access tokens; the client never verifies them (it has
// no key and does not need one), it only reads the registered claims for
// logging and expiry hints.

var errNoExpiry = errors.New("token has no exp claim")

// ParseExpiry returns the exp claim of an access token without verifying
// the signature.
func ParseExpiry(token string) (time.Time, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// ParseSubject returns the sub claim (the viewer's user id) of an access
// token without verifying the signature.
func ParseSubject(token string) (string, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExpiresWithin reports whether the token expires within d. Tokens without
// an exp claim report false.
func ExpiresWithin(token string, d time.Duration) bool {
	exp, err := ParseExpiry(token)
	if err != nil {
		return false
	}
	return time.Until(exp) < d
}

func parseClaims(token string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}
