package booknetwork

import (
	"context"

	"github.com/goliatone/go-router"
)

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithIdentityContext sets the caller identity in the given context.
func WithIdentityContext(r context.Context, identity Identity) context.Context {
	return context.WithValue(r, identityCtxKey, identity)
}

// IdentityFromContext finds the caller identity in the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	return raw, ok
}

// RouterIdentity extracts the caller identity the request gate stored in the
// router context.
func RouterIdentity(ctx router.Context, key string) (Identity, bool) {
	if key == "" {
		key = "user"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	identity, ok := raw.(Identity)
	return identity, ok
}

// HasRole reports whether the identity carries the named role.
func HasRole(identity Identity, role string) bool {
	if identity == nil {
		return false
	}
	for _, r := range identity.Roles() {
		if r == role {
			return true
		}
	}
	return false
}
