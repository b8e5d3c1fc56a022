package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateAndValidateToken round-trips the subject and name claims
func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService("unit-test-secret")

	signed, err := svc.GenerateToken("alice", "Alice", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	token, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "Alice", claims["name"])
}

// TestValidateTokenWrongSecret rejects tokens signed with another key
func TestValidateTokenWrongSecret(t *testing.T) {
	signed, err := NewJWTService("secret-a").GenerateToken("alice", "", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b").ValidateToken(signed)
	assert.Error(t, err)
}

// TestValidateExpiredToken rejects expired tokens
func TestValidateExpiredToken(t *testing.T) {
	svc := NewJWTService("unit-test-secret")

	signed, err := svc.GenerateToken("alice", "", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}

// TestOptionalNameClaim omits the name claim for anonymous principals
func TestOptionalNameClaim(t *testing.T) {
	svc := NewJWTService("unit-test-secret")

	signed, err := svc.GenerateToken("alice", "", time.Hour)
	require.NoError(t, err)

	token, err := svc.ValidateToken(signed)
	require.NoError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	_, present := claims["name"]
	assert.False(t, present)
}
