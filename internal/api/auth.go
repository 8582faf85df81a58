package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerAuth guards handlers with a constant-time token compare. Browser
// EventSource and WebSocket clients cannot set headers, so the token is also
// accepted as an access_token query parameter.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := ""
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if strings.HasPrefix(auth, prefix) {
				presented = auth[len(prefix):]
			} else {
				presented = r.URL.Query().Get("access_token")
			}

			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
