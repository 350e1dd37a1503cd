package auth

import (
	"net/http"
)

const (
	userIDHeader   = "X-Paperlane-User"
	userRoleHeader = "X-Paperlane-Role"
)

// NoneAuthenticator trusts the caller. The user id and role may be set with the
// X-Paperlane-User and X-Paperlane-Role headers; the default is an admin.
type NoneAuthenticator struct{}

func NewNoneAuthenticator() (*NoneAuthenticator, error) {
	return &NoneAuthenticator{}, nil
}

func (n *NoneAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := User{
			ID:       "admin",
			Username: "admin",
			Role:     RoleAdmin,
		}
		if id := r.Header.Get(userIDHeader); id != "" {
			user.ID = id
			user.Username = id
			user.Role = parseRole(r.Header.Get(userRoleHeader))
		}

		ctx := NewUserContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
