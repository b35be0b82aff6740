// Package auth implements the client-side session guard. Tokens are issued by
// the backend; the client only checks that one is present and, when it is a
// JWT, that it has not expired.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no session token is stored.
	ErrNoToken = errors.New("not logged in")

	// ErrTokenExpired is returned for a JWT whose exp claim has passed.
	ErrTokenExpired = errors.New("session token expired")
)

// TokenSource yields the stored session token.
type TokenSource interface {
	Get(key string) (string, bool)
}

// Check validates token at time now. Opaque (non-JWT) tokens are accepted;
// the backend is the authority on those.
func Check(token string, now time.Time) error {
	if token == "" {
		return ErrNoToken
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return nil
}

// Require loads the token stored under key and checks it.
func Require(src TokenSource, key string, now time.Time) (string, error) {
	token, _ := src.Get(key)
	if err := Check(token, now); err != nil {
		return "", err
	}
	return token, nil
}
