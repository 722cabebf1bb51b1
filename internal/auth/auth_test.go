package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarfinder-back/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewManager("secret", time.Hour)

	token, err := manager.GenerateToken(42, models.RoleManager)
	require.NoError(t, err)

	claims, err := manager.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, models.RoleManager, claims.Role)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).GenerateToken(1, models.RoleUser)
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).ParseToken(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := NewManager("secret", -time.Minute).GenerateToken(1, models.RoleUser)
	require.NoError(t, err)

	_, err = NewManager("secret", -time.Minute).ParseToken(token)
	assert.Error(t, err)
}
