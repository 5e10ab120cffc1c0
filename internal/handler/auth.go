package handler

import (
	"net/http"
	"time"

	"grandexchange-api/internal/model"
	"grandexchange-api/internal/service"
	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/response"
)

// AuthHandler handles player session tokens.
type AuthHandler struct {
	tokenService *service.TokenService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokenService *service.TokenService) *AuthHandler {
	return &AuthHandler{tokenService: tokenService}
}

// TokenRequest represents the request body for token generation.
type TokenRequest struct {
	PlayerID   int64  `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string    `json:"token"`
	PlayerID  int64     `json:"player_id"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

// GenerateToken handles POST /auth/token
// Game servers issue tokens for their players; players cannot mint tokens.
func (h *AuthHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	if err := requireServer(r); err != nil {
		writeError(w, err)
		return
	}
	var req TokenRequest
	if err := decodeJSON(r, tokenSchema, &req); err != nil {
		writeError(w, err)
		return
	}

	token, data, err := h.tokenService.GenerateToken(r.Context(), model.Player{ID: req.PlayerID, Name: req.PlayerName})
	if err != nil {
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		PlayerID:  data.PlayerID,
		ExpiresAt: data.ExpiresAt,
		ExpiresIn: int(time.Until(data.ExpiresAt).Seconds()),
	})
}

// RevokeToken handles POST /auth/revoke
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RevokeToken(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}

// RefreshToken handles POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	data, err := h.tokenService.RefreshToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_at": data.ExpiresAt,
		"expires_in": int(time.Until(data.ExpiresAt).Seconds()),
	})
}
