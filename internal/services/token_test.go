package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"excursion-booking/internal/models"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	tokens, err := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	})
	require.NoError(t, err)
	return tokens
}

func TestNewTokenService_RequiresSecrets(t *testing.T) {
	_, err := NewTokenService(TokenConfig{AccessSecret: "only-access"})
	assert.ErrorIs(t, err, models.ErrInternalConfiguration)

	tokens, err := NewTokenService(TokenConfig{AccessSecret: "a", RefreshSecret: "r"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, tokens.config.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, tokens.config.RefreshTTL)
}

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := newTestTokenService(t)

	pair, err := tokens.GenerateTokens(42)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	userID, err := tokens.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	userID, err = tokens.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	again, err := tokens.GenerateTokens(42)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, again.RefreshToken, "every token carries a unique id")
}

func TestTokenService_Rejects(t *testing.T) {
	tokens := newTestTokenService(t)
	pair, err := tokens.GenerateTokens(42)
	require.NoError(t, err)

	other, err := NewTokenService(TokenConfig{AccessSecret: "x", RefreshSecret: "y"})
	require.NoError(t, err)
	foreign, err := other.GenerateTokens(42)
	require.NoError(t, err)

	tests := []struct {
		name     string
		validate func(string) (int64, error)
		token    string
	}{
		{"refresh token used as access token", tokens.ValidateAccessToken, pair.RefreshToken},
		{"access token used as refresh token", tokens.ValidateRefreshToken, pair.AccessToken},
		{"foreign secret", tokens.ValidateAccessToken, foreign.AccessToken},
		{"garbage", tokens.ValidateAccessToken, "not-a-jwt"},
		{"empty", tokens.ValidateAccessToken, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validate(tt.token)
			assert.ErrorIs(t, err, models.ErrInvalidToken)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestTokenService_Expiry(t *testing.T) {
	tokens := newTestTokenService(t)
	issued := time.Now()
	tokens.now = func() time.Time { return issued }

	pair, err := tokens.GenerateTokens(7)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(14 * time.Minute) }
	_, err = tokens.ValidateAccessToken(pair.AccessToken)
	assert.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = tokens.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	_, err = tokens.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}
