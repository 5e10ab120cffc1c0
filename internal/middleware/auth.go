package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"grandexchange-api/internal/model"
	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/uid"
)

// TokenDataKey is the key for storing token data in request context.
const TokenDataKey contextKey = "token_data"

// TokenValidator resolves a player session token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenData, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	TokenService TokenValidator
	APIKeys      []string
}

// NewAuthMiddleware creates an authentication middleware with injected dependencies.
//
// Game servers authenticate with X-API-Key (or a Bearer key) and act for any
// player. Players authenticate with X-Token and act only for themselves; the
// token's data is put in the request context.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for health check endpoints
			if r.URL.Path == "/api/v1/health" || r.URL.Path == "/api/v1/ready" {
				next.ServeHTTP(w, r)
				return
			}

			// Try X-Token first (session tokens)
			token := r.Header.Get("X-Token")
			if token != "" && cfg.TokenService != nil {
				tokenData, err := cfg.TokenService.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}

				ctx := context.WithValue(r.Context(), TokenDataKey, tokenData)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Fall back to X-API-Key
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or X-API-Key header."))
				return
			}

			if !isValidKey(apiKey, cfg.APIKeys) {
				uid.Logf(r.Context(), "[Auth] Rejected API key from %s", r.RemoteAddr)
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		valid = strings.TrimSpace(valid)
		if valid != "" && subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// GetTokenDataFromContext retrieves token data from request context.
// It returns nil for requests authenticated with an API key.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}
