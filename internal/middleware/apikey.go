package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"barberia-backend/internal/transport"
)

// APIKeyFromRequest reads the key from the X-Api-Key header, the query string
// or a form body, in that order.
func APIKeyFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Api-Key")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("apiKey")); v != "" {
		return v
	}
	if r.Method == http.MethodPost {
		return strings.TrimSpace(r.PostFormValue("apiKey"))
	}
	return ""
}

// APIKey rejects requests that do not carry the shared key. An empty key
// disables the check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			got := APIKeyFromRequest(r)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				transport.WriteError(w, http.StatusUnauthorized, "invalid_api_key", "invalid api key", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
