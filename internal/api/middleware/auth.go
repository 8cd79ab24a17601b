package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIKeyMiddleware rejects requests lacking a matching x-api-key header
// when apiKey is configured (spec.md §6 "app.apiKey"). When apiKey is
// empty the guard is disabled and every request passes through.
func APIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.Header.Get("x-api-key") == apiKey {
				next.ServeHTTP(w, r)
				return
			}
			writeUnauthorized(w)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"statusCode": http.StatusUnauthorized,
		"message":    "missing or invalid x-api-key",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
