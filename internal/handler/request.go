package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"grandexchange-api/internal/middleware"
	"grandexchange-api/internal/model"
	"grandexchange-api/internal/service"
	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/response"
	"grandexchange-api/pkg/validate"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 * 1024

var errorMappings = []apierror.Mapping{
	{Target: model.ErrNotFound, New: apierror.NotFound},
	{Target: model.ErrForbidden, New: apierror.Forbidden},
	{Target: model.ErrValidation, New: func(msg string) *apierror.Error { return apierror.ValidationError(msg) }},
	{Target: model.ErrInvalidIndex, New: apierror.BadRequest},
	{Target: model.ErrInvalidState, New: apierror.Conflict},
	{Target: model.ErrSlotUnavailable, New: apierror.Conflict},
	{Target: model.ErrInsufficientFunds, New: apierror.Conflict},
	{Target: model.ErrRateLimited, New: func(msg string) *apierror.Error { return apierror.TooManyRequests(msg, 0) }},
	{Target: service.ErrInvalidToken, New: apierror.Unauthorized},
}

// writeError maps service errors onto API errors. Cooldowns carry their
// remaining time into Retry-After.
func writeError(w http.ResponseWriter, err error) {
	var cooldown *service.CooldownError
	if errors.As(err, &cooldown) {
		response.Error(w, apierror.TooManyRequests(err.Error(), cooldown.Remaining))
		return
	}
	response.Error(w, apierror.FromError(err, errorMappings...))
}

// decodeJSON validates the body against schema and decodes it into v.
func decodeJSON(r *http.Request, schema *validate.Schema, v any) error {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apierror.BadRequest("failed to read request body")
	}
	if len(body) > maxBodyBytes {
		return apierror.BadRequest("request body too large")
	}
	if err := schema.Bytes(body); err != nil {
		return apierror.ValidationError("invalid request body", apierror.FieldError{
			Field:   schema.Name(),
			Message: err.Error(),
		})
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apierror.BadRequest("invalid request body")
	}
	return nil
}

// int64Param parses a numeric URL parameter.
func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest(fmt.Sprintf("%s must be a positive integer", name))
	}
	return id, nil
}

// playerFromRequest resolves the player a request acts for. Players holding a
// session token may only act for themselves. Game servers name the player in
// the path and may pass a display name in X-Player-Name.
func playerFromRequest(r *http.Request) (model.Player, error) {
	playerID, err := int64Param(r, "player_id")
	if err != nil {
		return model.Player{}, err
	}

	if token := middleware.GetTokenDataFromContext(r.Context()); token != nil {
		if token.PlayerID != playerID {
			return model.Player{}, apierror.Forbidden("token does not belong to this player")
		}
		return model.Player{ID: playerID, Name: token.PlayerName}, nil
	}
	return model.Player{ID: playerID, Name: r.Header.Get("X-Player-Name")}, nil
}

// requireServer rejects requests made with a player token.
func requireServer(r *http.Request) error {
	if middleware.GetTokenDataFromContext(r.Context()) != nil {
		return apierror.Forbidden("game server API key required")
	}
	return nil
}

// ServerOnly rejects player tokens on every route it wraps.
func ServerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := requireServer(r); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
