// Package auth wires the session service: JWT cookie sessions with a
// direct credentials provider backed by the profiles table.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	authsvc "github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/avatar"
	"github.com/go-pkgz/auth/v2/provider"
	"github.com/go-pkgz/auth/v2/token"

	"watchverse/config"
	"watchverse/models"
	"watchverse/services/profiles"
)

// ProviderName is the name of the direct credentials provider; the login
// endpoint lives under /auth/{ProviderName}/login.
const ProviderName = "local"

// Credentials verifies a login/password pair.
type Credentials interface {
	CheckPassword(ctx context.Context, login, plainPassword string) (*models.Profile, error)
}

var _ Credentials = (*profiles.Service)(nil)

// NewService builds the session auth service. Sessions are JWT cookies
// signed with the configured secret; credentials are checked against the
// profiles table.
func NewService(cfg config.AuthConfig, server config.ServerConfig, checker Credentials) (*authsvc.Service, error) {
	avatarDir := filepath.Join(os.TempDir(), "watchverse-auth-avatars")
	if err := os.MkdirAll(avatarDir, 0755); err != nil {
		return nil, fmt.Errorf("create auth avatar dir: %w", err)
	}

	svc := authsvc.NewService(authsvc.Opts{
		SecretReader: token.SecretFunc(func(string) (string, error) {
			return cfg.Secret, nil
		}),
		TokenDuration:  cfg.TokenDuration,
		CookieDuration: cfg.CookieDuration,
		Issuer:         "watchverse",
		URL:            server.BaseURL,
		DisableXSRF:    true,
		AvatarStore:    avatar.NewLocalFS(avatarDir),
		Validator: token.ValidatorFunc(func(_ string, claims token.Claims) bool {
			return claims.User != nil
		}),
	})

	svc.AddDirectProvider(ProviderName, provider.CredCheckerFunc(func(user, password string) (bool, error) {
		_, err := checker.CheckPassword(context.Background(), user, password)
		if errors.Is(err, profiles.ErrInvalidCredentials) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}))

	return svc, nil
}
