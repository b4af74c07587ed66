package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensNeedSecret(t *testing.T) {
	SetJWTSecret("")
	_, err := GenerateJWT(uuid.New(), "nobody", 1)
	assert.ErrorIs(t, err, ErrJWTSecretUnset)
	_, err = ValidateJWT("a.b.c")
	assert.ErrorIs(t, err, ErrJWTSecretUnset)
}

func TestAccessAndRefreshTokens(t *testing.T) {
	SetJWTSecret("jwt-test")
	user := uuid.New()

	access, err := GenerateJWT(user, "listener", 1)
	require.NoError(t, err)
	refresh, err := GenerateRefreshToken(user, 24)
	require.NoError(t, err)

	claims, err := ValidateJWT(access)
	require.NoError(t, err)
	assert.Equal(t, user.String(), claims.UserID)
	assert.Equal(t, "listener", claims.Username)

	subject, err := ValidateRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, user.String(), subject)

	// each kind only works where it belongs
	_, err = ValidateRefreshToken(access)
	assert.Error(t, err)
	_, err = ValidateJWT(refresh)
	assert.Error(t, err)

	SetJWTSecret("rotated")
	_, err = ValidateJWT(access)
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	SetJWTSecret("jwt-test")
	token, err := GenerateJWT(uuid.New(), "listener", -1)
	require.NoError(t, err)
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}
