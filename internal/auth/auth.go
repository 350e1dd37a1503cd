package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/paperlane/paperlane/internal/config"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticator(next http.Handler) http.Handler
}

const (
	SSOAuthentication   string = "sso"
	LocalAuthentication string = "local"
	NoneAuthentication  string = "none"
)

func NewAuthenticator(authConfig config.Auth) (Authenticator, error) {
	zap.S().Named("auth").Infof("authentication: '%s'", authConfig.AuthenticationType)

	switch authConfig.AuthenticationType {
	case SSOAuthentication:
		return NewSSOAuthenticator(authConfig.JwkCertURL)
	case LocalAuthentication:
		return NewLocalAuthenticator([]byte(authConfig.LocalSecret))
	default:
		return NewNoneAuthenticator()
	}
}

func bearerToken(r *http.Request) (string, error) {
	accessToken := r.Header.Get("Authorization")
	if accessToken == "" || !strings.HasPrefix(accessToken, "Bearer ") {
		return "", fmt.Errorf("no token provided")
	}
	return strings.TrimPrefix(accessToken, "Bearer "), nil
}
