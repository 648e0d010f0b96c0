package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("agua-pura-2024", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "agua-pura-2024", hash)
	assert.True(t, VerifyPassword(hash, "agua-pura-2024"))
	assert.False(t, VerifyPassword(hash, "agua-pura-2025"))
}

func TestNewAccessTokenClaims(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "SUPERVISOR", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "SUPERVISOR", claims["role"])

	_, err = jwt.Parse(tok.Token, func(*jwt.Token) (any, error) { return []byte("other"), nil })
	assert.Error(t, err)
}
