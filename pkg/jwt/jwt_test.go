package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken(7, 1, "alice", "accounts", "财务部")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(1), claims.TenantID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "accounts", claims.Role)
	assert.Equal(t, "财务部", claims.Department)
	assert.False(t, claims.IsAdmin())
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("another-secret", time.Hour)

	token, err := manager.GenerateToken(1, 1, "bob", "employee", "")
	require.NoError(t, err)

	_, err = other.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_Expired(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)

	token, err := manager.GenerateToken(1, 1, "bob", "employee", "")
	require.NoError(t, err)

	_, err = manager.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_Garbage(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	_, err := manager.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateToken(7, 2, "carol", "admin", "管理部")
	require.NoError(t, err)

	refreshed, err := manager.RefreshToken(token)
	require.NoError(t, err)

	claims, err := manager.VerifyToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, uint(2), claims.TenantID)
	assert.True(t, claims.IsAdmin())
}
