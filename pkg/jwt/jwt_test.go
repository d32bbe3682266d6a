package jwt

import (
	"testing"

	"opendebate/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}

	token, err := GenerateToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := ParseUserID(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), userID)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
	token, err := GenerateToken(42)
	require.NoError(t, err)

	config.AppConfig = &config.Config{JWTSecret: "another-secret"}
	_, err = ParseUserID(token)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
	_, err := ParseUserID("not.a.token")
	assert.Error(t, err)
}
