package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"grandexchange-api/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	return NewTokenService(c, ttl)
}

func TestTokenService_GenerateAndValidate(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	ctx := context.Background()

	token, data, err := svc.GenerateToken(ctx, alice)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, token, len(TokenPrefix)+64)
	assert.Equal(t, alice.ID, data.PlayerID)

	got, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.PlayerID)
	assert.Equal(t, "alice", got.PlayerName)
}

func TestTokenService_RejectsBadTokens(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	ctx := context.Background()

	for _, token := range []string{"", "abc", TokenPrefix, TokenPrefix + "deadbeef"} {
		_, err := svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestTokenService_Revoke(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	ctx := context.Background()

	token, _, err := svc.GenerateToken(ctx, bob)
	require.NoError(t, err)
	require.NoError(t, svc.RevokeToken(ctx, token))

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Refresh(t *testing.T) {
	svc := newTokenService(t, time.Hour)
	ctx := context.Background()

	token, issued, err := svc.GenerateToken(ctx, bob)
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, token)
	require.NoError(t, err)
	assert.False(t, refreshed.ExpiresAt.Before(issued.ExpiresAt))

	_, err = svc.RefreshToken(ctx, TokenPrefix+"missing")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
