package auth

import (
	"crypto/subtle"
	"net/http"
)

const APIKeyHeader = "X-API-Key"

// RequireAPIKey guards machine-to-machine endpoints. Authenticated requests run as the system user.
func RequireAPIKey(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(APIKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			ctx := NewUserContext(r.Context(), SystemUser())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
