package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/uid"
)

// Recovery turns a panicking market handler into a 500. The log line names
// the route and the acting player, and the error body carries the request id
// so a game server can report the failed action. Must run inside RequestID.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}
			route, player := routeOf(r)
			uid.Logf(r.Context(), "[Recovery] Panic in %s %s player=%s: %v\n%s",
				r.Method, route, player, err, debug.Stack())
			writeError(w, apierror.InternalError(fmt.Sprintf("internal server error (request %s)", GetRequestID(r.Context()))))
		}()

		next.ServeHTTP(w, r)
	})
}
