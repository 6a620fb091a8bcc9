// Package identity carries the authenticated caller through request contexts.
// Authentication itself is owned elsewhere; this package only verifies the
// bearer token it issued and trusts its claims.
package identity

import "context"

// Role is the portal role of a user.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   Role
}

type ctxKey string

const principalKey ctxKey = "portal.principal"

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the principal if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.UserID != ""
}
