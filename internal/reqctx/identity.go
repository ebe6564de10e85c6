// Package reqctx carries the authenticated caller through a request's context.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated user and tenant a request acts for.
type Identity struct {
	UserID      uuid.UUID
	Username    string
	CompanyID   uuid.UUID
	Role        string
	SessionID   uuid.UUID
	Permissions []string
}

func (i Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// Has reports whether the identity holds perm. Admins hold every permission.
func (i Identity) Has(perm string) bool {
	if i.IsAdmin() {
		return true
	}
	for _, p := range i.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity stored on ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
