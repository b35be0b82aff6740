package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}
	return s
}

type mapSource map[string]string

func (m mapSource) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrNoToken},
		{name: "opaque", token: "abc123", wantErr: nil},
		{name: "valid jwt", token: signed(t, now.Add(time.Hour)), wantErr: nil},
		{name: "expired jwt", token: signed(t, now.Add(-time.Minute)), wantErr: ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.token, now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	now := time.Now()

	if _, err := Require(mapSource{}, "token", now); !errors.Is(err, ErrNoToken) {
		t.Errorf("Require() without token error = %v", err)
	}

	tok, err := Require(mapSource{"token": "opaque"}, "token", now)
	if err != nil || tok != "opaque" {
		t.Errorf("Require() = %q, %v", tok, err)
	}
}
