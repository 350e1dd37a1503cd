package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// LocalAuthenticator validates HS256 tokens issued by the credential subsystem with a shared secret.
type LocalAuthenticator struct {
	secret []byte
}

type localClaims struct {
	Username string `json:"preferred_username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func NewLocalAuthenticator(secret []byte) (*LocalAuthenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("local authentication requires a secret")
	}
	return &LocalAuthenticator{secret: secret}, nil
}

// Issue signs a token for user valid for ttl.
func (l *LocalAuthenticator) Issue(user User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := localClaims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
}

func (l *LocalAuthenticator) Authenticate(token string) (User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithIssuedAt(), jwt.WithExpirationRequired())

	claims := &localClaims{}
	t, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return l.secret, nil
	})
	if err != nil {
		return User{}, fmt.Errorf("failed to authenticate token: %w", err)
	}

	if claims.Subject == "" {
		return User{}, errors.New("token has no subject")
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}

	return User{
		ID:       claims.Subject,
		Username: username,
		Role:     parseRole(claims.Role),
		Token:    t,
	}, nil
}

func (l *LocalAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, err := bearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		user, err := l.Authenticate(accessToken)
		if err != nil {
			zap.S().Named("auth").Debugw("local authentication failed", "error", err)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		ctx := NewUserContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
