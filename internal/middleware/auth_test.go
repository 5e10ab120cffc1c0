package middleware

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"grandexchange-api/internal/model"
	"grandexchange-api/pkg/uid"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens map[string]model.TokenData

func (s stubTokens) ValidateToken(ctx context.Context, token string) (*model.TokenData, error) {
	data, ok := s[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &data, nil
}

func serve(t *testing.T, path string, headers map[string]string) (*httptest.ResponseRecorder, *model.TokenData) {
	t.Helper()
	var seen *model.TokenData
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTokenDataFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	RequestID(NewAuthMiddleware(AuthConfig{
		TokenService: stubTokens{"get_ok": {PlayerID: 7, PlayerName: "alice"}},
		APIKeys:      []string{"server-key", " "},
	})(next)).ServeHTTP(rec, req)
	return rec, seen
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
		wantPlayer int64
	}{
		{"health is public", "/api/v1/health", nil, http.StatusNoContent, 0},
		{"missing credentials", "/api/v1/market", nil, http.StatusUnauthorized, 0},
		{"api key", "/api/v1/market", map[string]string{"X-API-Key": "server-key"}, http.StatusNoContent, 0},
		{"bearer key", "/api/v1/market", map[string]string{"Authorization": "Bearer server-key"}, http.StatusNoContent, 0},
		{"wrong key", "/api/v1/market", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, 0},
		{"blank configured key never matches", "/api/v1/market", map[string]string{"X-API-Key": " "}, http.StatusUnauthorized, 0},
		{"player token", "/api/v1/market", map[string]string{"X-Token": "get_ok"}, http.StatusNoContent, 7},
		{"bad token", "/api/v1/market", map[string]string{"X-Token": "get_bad", "X-API-Key": "server-key"}, http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, data := serve(t, tt.path, tt.headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			if tt.wantPlayer != 0 {
				require.NotNil(t, data)
				assert.Equal(t, tt.wantPlayer, data.PlayerID)
			} else {
				assert.Nil(t, data)
			}
		})
	}
}

func TestRecovery_LogsRouteAndPlayer(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recovery)
	r.Post("/players/{player_id}/sell-offers", func(w http.ResponseWriter, r *http.Request) {
		panic("slot table corrupt")
	})

	req := httptest.NewRequest(http.MethodPost, "/players/7/sell-offers", nil)
	req.Header.Set("X-Request-ID", "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, rec.Body.String(), "request 1b4e28ba-2fa1-11d2-883f-0016d3cca427")

	logged := buf.String()
	assert.Contains(t, logged, "[Recovery] Panic in POST /players/{player_id}/sell-offers player=7: slot table corrupt")
	assert.Contains(t, logged, "request_id=1b4e28ba-2fa1-11d2-883f-0016d3cca427")
}

func TestRequestID_ReplacesForgedIDs(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "x\n[MarketService] Trade: forged")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, uid.IsValid(seen))
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}
