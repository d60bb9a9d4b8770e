// Package directory adapts the external account directory. The engine trusts
// the gateway's authenticated username and only asks the directory for
// claims; it never sees credentials.
package directory

import (
	"context"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

// Directory resolves an authenticated username into an identity with claims.
type Directory interface {
	Lookup(ctx context.Context, username string) (domain.Identity, error)
}

// Static is a Directory whose admin set is fixed at startup from
// configuration. Market resolution is gated on the Admin claim it attaches,
// not on comparing usernames at the call site.
type Static struct {
	admins map[string]bool
}

// NewStatic creates a Static directory granting the Admin claim to the given
// usernames.
func NewStatic(admins []string) *Static {
	set := make(map[string]bool, len(admins))
	for _, a := range admins {
		if a != "" {
			set[a] = true
		}
	}
	return &Static{admins: set}
}

// Lookup returns the identity for username. Unknown users are valid
// identities without claims; the directory of record lives outside the core.
func (s *Static) Lookup(ctx context.Context, username string) (domain.Identity, error) {
	return domain.Identity{
		Username: username,
		Admin:    s.admins[username],
	}, nil
}

var _ Directory = (*Static)(nil)
