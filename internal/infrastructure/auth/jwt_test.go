package auth

import (
	"testing"
	"time"

	"github.com/chantier/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestVerifier() *Verifier {
	return NewVerifier(config.AuthConfig{
		Enabled:   true,
		Secret:    testSecret,
		Issuer:    "chantier-portal",
		AdminRole: "admin",
	})
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(userID, role string) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chantier-portal",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
		UserID: userID,
		Role:   role,
	}
}

func TestVerify_Success(t *testing.T) {
	v := newTestVerifier()
	userID := uuid.New().String()
	token := signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(userID, "admin"))

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, v.IsAdmin(claims))

	parsed, err := claims.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, parsed.String())
	assert.Greater(t, claims.GetRemainingTTL(), time.Duration(0))
}

func TestVerify_SubjectFallback(t *testing.T) {
	v := newTestVerifier()
	c := validClaims("user-42", "client")
	c.UserID = ""
	token := signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), c)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.False(t, v.IsAdmin(claims))
}

func TestVerify_Failures(t *testing.T) {
	v := newTestVerifier()

	expired := validClaims("u1", "admin")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	future := validClaims("u1", "admin")
	future.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))

	wrongIssuer := validClaims("u1", "admin")
	wrongIssuer.Issuer = "someone-else"

	noExpiry := validClaims("u1", "admin")
	noExpiry.ExpiresAt = nil

	noUser := validClaims("", "admin")

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", signClaims(t, jwt.SigningMethodHS256, []byte("other-secret"), validClaims("u1", "admin")), ErrInvalidToken},
		{"wrong algorithm", signClaims(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("u1", "admin")), ErrInvalidToken},
		{"expired", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), expired), ErrExpiredToken},
		{"not yet valid", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), future), ErrTokenNotYetValid},
		{"wrong issuer", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer), ErrInvalidToken},
		{"missing expiry", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry), ErrInvalidToken},
		{"missing user", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noUser), ErrMissingUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Verify(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsAdmin(t *testing.T) {
	v := newTestVerifier()
	assert.False(t, v.IsAdmin(nil))
	assert.True(t, v.IsAdmin(&Claims{Role: "admin"}))
	assert.False(t, v.IsAdmin(&Claims{Role: "client"}))

	noRole := NewVerifier(config.AuthConfig{Secret: testSecret})
	assert.False(t, noRole.IsAdmin(&Claims{Role: ""}))
	assert.Equal(t, "", noRole.AdminRole())
	assert.Equal(t, "admin", v.AdminRole())
}

func TestGetRemainingTTL_Expired(t *testing.T) {
	c := &Claims{}
	assert.Equal(t, time.Duration(0), c.GetRemainingTTL())
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	assert.Equal(t, time.Duration(0), c.GetRemainingTTL())
}
