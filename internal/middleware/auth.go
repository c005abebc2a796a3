package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIKey returns a middleware enforcing the shared-secret X-API-Key header.
// An empty configured key disables the check entirely (local development).
// The check runs before any job state is touched; a mismatch never creates
// or mutates an extraction.
func APIKey(key string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next(w, r)
				return
			}

			got := r.Header.Get("X-API-Key")
			if got == "" {
				writeAuthError(w, "Missing API key. Include X-API-Key header.")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeAuthError(w, "Invalid API key")
				return
			}
			next(w, r)
		}
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode auth error response", "error", err)
	}
}
