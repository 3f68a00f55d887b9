package supabase

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "u-1",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestVerifyToken(t *testing.T) {
	v := NewTokenVerifier("top-secret")

	sub, err := v.Verify(sign(t, jwt.SigningMethodHS256, []byte("top-secret"), validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "u-1", sub)
}

func TestVerifyTokenRejects(t *testing.T) {
	v := NewTokenVerifier("top-secret")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims())},
		{"wrong method", sign(t, jwt.SigningMethodHS512, []byte("top-secret"), validClaims())},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte("top-secret"), expired)},
		{"wrong audience", sign(t, jwt.SigningMethodHS256, []byte("top-secret"), wrongAudience)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte("top-secret"), noExpiry)},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte("top-secret"), noSubject)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
