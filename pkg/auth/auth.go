// Package auth defines the boundary between the async task core and
// the external authentication provider (spec.md §6 "Authentication
// boundary"): the core only ever consumes an already-resolved
// types.AuthUser. How one is obtained - password, token cookie lookup,
// or peer-credential lookup on an AF_UNIX control socket where uid 0
// maps to the distinguished superuser principal - is out of scope;
// this package only fixes the shape of that handoff, grounded on the
// original pcs.daemon.app.auth module's auth-by-socket-user /
// auth-by-username split.
package auth

import (
	"context"
	"errors"

	"github.com/hacluster/pcsd/pkg/types"
)

// Superuser is the distinguished principal granted to a caller
// connecting as uid 0 over the local control socket.
const Superuser = "hacluster"

// ErrNotAuthorized is returned by a Resolver when it cannot resolve
// the caller to a AuthUser at all (bad credentials, unknown peer uid).
var ErrNotAuthorized = errors.New("auth: not authorized")

// Resolver resolves an inbound request's credentials to an AuthUser.
// Real implementations (password form, token cookie, peer-credential
// socket lookup) live outside this repo's scope; this package only
// declares the seam pkg/httpapi's handlers call through.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (types.AuthUser, error)
}

// FixedResolver is a trivial Resolver that always returns the same
// AuthUser, regardless of the supplied credential. It exists so
// pkg/httpapi and demos can run end to end without wiring a real
// authentication backend; production deployments replace it entirely.
type FixedResolver struct {
	User types.AuthUser
}

// NewFixedResolver builds a FixedResolver for username, optionally
// superuser.
func NewFixedResolver(username string, groups []string, superuser bool) *FixedResolver {
	return &FixedResolver{User: types.AuthUser{
		Username:    username,
		Groups:      groups,
		IsSuperuser: superuser,
	}}
}

// Resolve always succeeds with the fixed user.
func (r *FixedResolver) Resolve(_ context.Context, _ string) (types.AuthUser, error) {
	return r.User, nil
}

// PeerCredentialUser maps a resolved local-socket peer uid/username to
// an AuthUser, honoring the uid-0-is-superuser rule. The actual
// SO_PEERCRED syscall lookup is a transport concern left to the real
// auth provider; this is the pure mapping the transport calls into.
func PeerCredentialUser(uid int, username string) types.AuthUser {
	if uid == 0 {
		return types.AuthUser{Username: Superuser, IsSuperuser: true}
	}
	return types.AuthUser{Username: username}
}
