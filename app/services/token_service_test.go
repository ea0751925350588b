package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, accessTTL time.Duration) TokenService {
	t.Helper()
	svc, err := NewTokenService(accessTTL, 24*time.Hour, "test-issuer", "test-audience", false, "", "", "test-secret-key-0123456789", nil)
	require.NoError(t, err)
	return svc
}

func TestTokenService(t *testing.T) {
	t.Run("GenerateAndValidateRoundTrip", func(t *testing.T) {
		svc := newTestTokenService(t, time.Hour)

		accessToken, refreshToken, err := svc.GenerateTokens(42)
		require.NoError(t, err)
		require.NotEmpty(t, accessToken)
		require.NotEmpty(t, refreshToken)
		assert.NotEqual(t, accessToken, refreshToken)

		accessClaims, err := svc.ValidateToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, uint(42), accessClaims.UserID)
		assert.Equal(t, "access", accessClaims.TokenType)
		assert.NotEmpty(t, accessClaims.TokenID)
		assert.True(t, accessClaims.ExpiresAt.After(accessClaims.IssuedAt))

		refreshClaims, err := svc.ValidateToken(refreshToken)
		require.NoError(t, err)
		assert.Equal(t, uint(42), refreshClaims.UserID)
		assert.Equal(t, "refresh", refreshClaims.TokenType)
		assert.NotEqual(t, accessClaims.TokenID, refreshClaims.TokenID)
	})

	t.Run("RejectsTamperedToken", func(t *testing.T) {
		svc := newTestTokenService(t, time.Hour)

		accessToken, _, err := svc.GenerateTokens(1)
		require.NoError(t, err)

		tampered := accessToken[:len(accessToken)-2] + "xx"
		_, err = svc.ValidateToken(tampered)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("RejectsTokenSignedWithDifferentSecret", func(t *testing.T) {
		svc := newTestTokenService(t, time.Hour)
		other, err := NewTokenService(time.Hour, 24*time.Hour, "test-issuer", "test-audience", false, "", "", "a-completely-different-secret", nil)
		require.NoError(t, err)

		accessToken, _, err := other.GenerateTokens(1)
		require.NoError(t, err)

		_, err = svc.ValidateToken(accessToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("RejectsExpiredToken", func(t *testing.T) {
		svc := newTestTokenService(t, -time.Minute)

		accessToken, _, err := svc.GenerateTokens(1)
		require.NoError(t, err)

		_, err = svc.ValidateToken(accessToken)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("RefreshRotatesTokens", func(t *testing.T) {
		svc := newTestTokenService(t, time.Hour)

		_, refreshToken, err := svc.GenerateTokens(9)
		require.NoError(t, err)

		newAccess, newRefresh, err := svc.RefreshToken(refreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, newAccess)
		require.NotEmpty(t, newRefresh)
		assert.NotEqual(t, refreshToken, newRefresh)

		claims, err := svc.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(9), claims.UserID)
	})

	t.Run("RefreshRejectsAccessToken", func(t *testing.T) {
		svc := newTestTokenService(t, time.Hour)

		accessToken, _, err := svc.GenerateTokens(9)
		require.NoError(t, err)

		_, _, err = svc.RefreshToken(accessToken)
		require.ErrorContains(t, err, "not a refresh token")
	})

	t.Run("RevokedTokenIsRejected", func(t *testing.T) {
		svc := newTestTokenService(t, time.Hour)

		accessToken, refreshToken, err := svc.GenerateTokens(5)
		require.NoError(t, err)

		require.NoError(t, svc.RevokeToken(accessToken))
		assert.True(t, svc.IsTokenRevoked(accessToken))

		_, err = svc.ValidateToken(accessToken)
		require.ErrorIs(t, err, ErrTokenRevoked)

		// revoking the access token leaves the refresh token usable
		_, err = svc.ValidateToken(refreshToken)
		require.NoError(t, err)
		assert.False(t, svc.IsTokenRevoked(refreshToken))
	})

	t.Run("AdminTokensCarryAdminClaims", func(t *testing.T) {
		svc := newTestTokenService(t, time.Hour)

		accessToken, refreshToken, err := svc.GenerateAdminTokens(7)
		require.NoError(t, err)
		require.NotEmpty(t, refreshToken)

		claims, err := svc.ValidateAdminToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.AdminID)
		assert.Equal(t, "access", claims.TokenType)

		// a user token has no admin_id claim and must not validate as admin
		userToken, _, err := svc.GenerateTokens(7)
		require.NoError(t, err)
		_, err = svc.ValidateAdminToken(userToken)
		require.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("RequiresSecretWithoutRSAKeys", func(t *testing.T) {
		_, err := NewTokenService(time.Hour, 24*time.Hour, "test-issuer", "test-audience", false, "", "", "", nil)
		require.Error(t, err)
	})
}
