package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// QueryParam is the URL query parameter accepted in place of the header.
// Browsers cannot set headers on WebSocket upgrades.
const QueryParam = "api_key"

// APIKeyMiddleware returns HTTP middleware applying the same rules as
// APIKeyInterceptor. The key is read from header, or from the api_key query
// parameter when the header is absent. Rejected requests get 401 with a JSON
// error body.
func APIKeyMiddleware(mode, header, key string) func(http.Handler) http.Handler {
	check := newKeyCheck(mode, header, key)
	return func(next http.Handler) http.Handler {
		if check == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(check.header)
			if got == "" {
				got = r.URL.Query().Get(QueryParam)
			}
			if !check.match(got) {
				slog.Debug("auth: rejected http request", "path", r.URL.Path, "remote", r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
