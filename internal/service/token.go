package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/model"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "get_"

	// DefaultTokenTTL is the default token lifetime (1 hour)
	DefaultTokenTTL = 1 * time.Hour

	// TokenKeyPrefix is the cache key prefix for tokens
	TokenKeyPrefix = "token:"
)

// ErrInvalidToken is returned for malformed, unknown and expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenService issues player session tokens used by the history WebSocket
// and by player-scoped requests.
type TokenService struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewTokenService creates a new token service.
func NewTokenService(c cache.Cache, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		cache: c,
		ttl:   ttl,
	}
}

// GenerateToken creates a new session token for a player.
func (s *TokenService) GenerateToken(ctx context.Context, player model.Player) (string, model.TokenData, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", model.TokenData{}, fmt.Errorf("failed to generate token: %w", err)
	}

	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	data := model.TokenData{
		PlayerID:   player.ID,
		PlayerName: player.Name,
		CreatedAt:  time.Now(),
	}
	data.ExpiresAt = data.CreatedAt.Add(s.ttl)

	if err := s.store(ctx, token, data); err != nil {
		return "", model.TokenData{}, err
	}

	log.Printf("[TokenService] Generated token for player_id=%d, expires=%v",
		data.PlayerID, data.ExpiresAt)

	return token, data, nil
}

// ValidateToken checks if a token is valid and returns its data.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.TokenData, error) {
	if !strings.HasPrefix(token, TokenPrefix) || len(token) == len(TokenPrefix) {
		return nil, fmt.Errorf("malformed token: %w", ErrInvalidToken)
	}

	raw, err := s.cache.Get(ctx, TokenKeyPrefix+token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("token not found or expired: %w", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}

	if time.Now().After(data.ExpiresAt) {
		_ = s.cache.Delete(ctx, TokenKeyPrefix+token)
		return nil, fmt.Errorf("token expired: %w", ErrInvalidToken)
	}

	return &data, nil
}

// RevokeToken deletes a token.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, TokenKeyPrefix+token)
}

// RefreshToken extends the lifetime of an existing token.
func (s *TokenService) RefreshToken(ctx context.Context, token string) (*model.TokenData, error) {
	data, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	data.ExpiresAt = time.Now().Add(s.ttl)
	if err := s.store(ctx, token, *data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *TokenService) store(ctx context.Context, token string, data model.TokenData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize token data: %w", err)
	}
	if err := s.cache.Set(ctx, TokenKeyPrefix+token, raw, s.ttl); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}
