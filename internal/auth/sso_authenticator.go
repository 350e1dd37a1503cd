package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SSOAuthenticator validates RS256 tokens against the keys published on a JWKS endpoint.
type SSOAuthenticator struct {
	keyFn func(t *jwt.Token) (any, error)
}

func NewSSOAuthenticatorWithKeyFn(keyFn func(t *jwt.Token) (any, error)) (*SSOAuthenticator, error) {
	return &SSOAuthenticator{keyFn: keyFn}, nil
}

func NewSSOAuthenticator(jwkCertUrl string) (*SSOAuthenticator, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwkCertUrl})
	if err != nil {
		return nil, fmt.Errorf("failed to get sso public keys: %w", err)
	}

	return &SSOAuthenticator{keyFn: k.Keyfunc}, nil
}

func (s *SSOAuthenticator) Authenticate(token string) (User, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}), jwt.WithIssuedAt(), jwt.WithExpirationRequired())
	t, err := parser.Parse(token, s.keyFn)
	if err != nil {
		zap.S().Named("auth").Debugw("failed to parse or the token is invalid", "error", err)
		return User{}, fmt.Errorf("failed to authenticate token: %w", err)
	}

	if !t.Valid {
		return User{}, fmt.Errorf("failed to parse or validate token")
	}

	return s.parseToken(t)
}

func (s *SSOAuthenticator) parseToken(userToken *jwt.Token) (User, error) {
	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		return User{}, errors.New("failed to parse jwt token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return User{}, errors.New("token has no subject")
	}

	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username = sub
	}

	return User{
		ID:       sub,
		Username: username,
		Role:     roleFromClaims(claims),
		Token:    userToken,
	}, nil
}

// roleFromClaims reads the role claim, falling back to keycloak style realm roles.
func roleFromClaims(claims jwt.MapClaims) Role {
	if r, ok := claims["role"]; ok {
		return parseRole(r)
	}
	realm, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return RoleUser
	}
	roles, _ := realm["roles"].([]any)
	for _, r := range roles {
		if parseRole(r) == RoleAdmin {
			return RoleAdmin
		}
	}
	return RoleUser
}

func (s *SSOAuthenticator) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken, err := bearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		user, err := s.Authenticate(accessToken)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		ctx := NewUserContext(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
