package utils

import (
	"testing"
	"time"

	"autorepair-shop-server/internal/config"
	"autorepair-shop-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateTokens(t *testing.T) {
	cfg := &config.Config{
		JWTSecret:                 "access",
		JWTRefreshSecret:          "refresh",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	}
	user := &models.User{BaseModel: models.BaseModel{ID: "user-1"}, Role: models.RoleTechnician}
	now := time.Now()

	pair, err := GenerateTokens(user, cfg, now)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.WithinDuration(t, now.Add(24*time.Hour), pair.RefreshExpiresAt, time.Second)

	claims, err := ValidateToken(pair.AccessToken, "access")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTechnician, claims.Role)
	assert.NotEmpty(t, claims.ID)

	_, err = ValidateToken(pair.AccessToken, "refresh")
	assert.Error(t, err)

	again, err := GenerateTokens(user, cfg, now)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, again.RefreshToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s", JWTRefreshSecret: "r", JWTExpirationMinutes: 1, JWTRefreshExpirationHours: 1}
	user := &models.User{BaseModel: models.BaseModel{ID: "user-1"}, Role: models.RoleCustomer}

	pair, err := GenerateTokens(user, cfg, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ValidateToken(pair.AccessToken, "s")
	assert.Error(t, err)
	_, err = ValidateToken("not-a-token", "s")
	assert.Error(t, err)
}
