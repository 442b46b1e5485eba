// Package session resolves the acting user for a request. The auth
// middleware validates the JWT cookie and attaches the token user; this
// package maps that identity back to a profile snapshot so handlers deal
// with one type instead of duplicating session state.
package session

import (
	"context"
	"net/http"

	"github.com/go-pkgz/auth/v2/token"

	"watchverse/models"
)

// ProfileReader resolves a login name to a profile.
type ProfileReader interface {
	GetByLogin(ctx context.Context, login string) (*models.Profile, error)
}

// Resolver turns request identities into profile snapshots.
type Resolver struct {
	profiles ProfileReader
}

// NewResolver creates a session resolver.
func NewResolver(profiles ProfileReader) *Resolver {
	return &Resolver{profiles: profiles}
}

// CurrentUser returns the profile for the request's session, or nil for
// anonymous requests. A stale session whose account no longer exists is
// treated as anonymous, never as an error.
func (r *Resolver) CurrentUser(req *http.Request) *models.Profile {
	user, err := token.GetUserInfo(req)
	if err != nil || user.Name == "" {
		return nil
	}

	profile, err := r.profiles.GetByLogin(req.Context(), user.Name)
	if err != nil || profile == nil {
		return nil
	}
	return profile
}
