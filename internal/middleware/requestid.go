package middleware

import (
	"context"
	"net/http"

	"grandexchange-api/pkg/uid"

	"github.com/go-chi/chi/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// RequestID tags each request with an id and echoes it in X-Request-ID. A game
// server may pass its own id to correlate its logs with ours; it is kept only
// if it is a UUID. Service log lines written with uid.Logf carry the id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uid.Normalize(r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(uid.WithRequestID(r.Context(), requestID)))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	return uid.RequestID(ctx)
}

// routeOf returns the matched route pattern and the player the request acts
// for. Both are read from chi's route context, which the router fills in
// before the handler runs, so they are available after next returns.
func routeOf(r *http.Request) (route, player string) {
	route, player = r.URL.Path, "-"
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return route, player
	}
	if p := rctx.RoutePattern(); p != "" {
		route = p
	}
	if id := rctx.URLParam("player_id"); id != "" {
		player = id
	}
	return route, player
}
