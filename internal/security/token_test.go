package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestTokenService_RoundTrip(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)

	tok, err := ts.CreateForUser("user-1", false)
	require.NoError(t, err)
	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, Claims{UserID: "user-1"}, claims)

	adminTok, err := ts.CreateForUser("admin-1", true)
	require.NoError(t, err)
	claims, err = ts.Parse(adminTok)
	require.NoError(t, err)
	assert.True(t, claims.Admin)
}

func TestTokenService_Rejects(t *testing.T) {
	ts := NewTokenService(testSecret, time.Hour)

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "u1",
			"iss": Issuer,
			"aud": Audience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	expired, err := ts.CreateWithTTL("u1", false, -time.Minute)
	require.NoError(t, err)

	wrongIssuer := valid()
	wrongIssuer["iss"] = "someone-else"
	noSubject := valid()
	delete(noSubject, "sub")
	noExpiry := valid()
	delete(noExpiry, "exp")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong secret", sign(valid(), "another-secret-another-secret-another")},
		{"wrong issuer", sign(wrongIssuer, testSecret)},
		{"missing subject", sign(noSubject, testSecret)},
		{"missing expiry", sign(noExpiry, testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Parse(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
