package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	// RoleSystem is held by the server's own background work: the reconciler and engine callbacks.
	RoleSystem Role = "SYSTEM"
)

type tokenKeyType struct{}

var (
	tokenKey tokenKeyType
)

type User struct {
	ID       string
	Username string
	Role     Role
	Token    *jwt.Token
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSystem
}

// SystemUser is the actor recorded for transitions the server makes on its own.
func SystemUser() User {
	return User{ID: "system", Username: "system", Role: RoleSystem}
}

func UserFromContext(ctx context.Context) (User, bool) {
	val := ctx.Value(tokenKey)
	if val == nil {
		return User{}, false
	}
	u, ok := val.(User)
	return u, ok
}

func MustHaveUser(ctx context.Context) User {
	user, found := UserFromContext(ctx)
	if !found {
		zap.S().Named("auth").Panic("failed to find user in context")
	}
	return user
}

func NewUserContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, tokenKey, u)
}

func parseRole(v any) Role {
	s, _ := v.(string)
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}
