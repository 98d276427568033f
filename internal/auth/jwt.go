// Package auth provides bearer token sources for the API client. Tokens are
// issued by the external identity provider; this package only reads their
// expiry so they can be refreshed ahead of time.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token cannot be parsed as a JWT.
var ErrInvalidToken = errors.New("invalid token")

// ErrNoExpiry is returned when a JWT carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// Claims are the identity provider claims the client cares about.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
}

// ParseUnverified decodes a JWT without checking its signature. The API
// verifies tokens; the client only needs the claims for scheduling refreshes.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// ExpiresAt returns the token's exp claim.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Subject returns the token's sub claim (the external user id).
func Subject(token string) (string, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
