package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Role of the authenticated caller, as asserted by the identity collaborator.
type Role string

const (
	RoleAdmin        Role = "admin"
	RolePractitioner Role = "practitioner"
	RoleReceptionist Role = "receptionist"
)

// CanWrite reports whether the role may create or mutate appointments.
func (r Role) CanWrite() bool {
	switch r {
	case RoleAdmin, RolePractitioner, RoleReceptionist:
		return true
	}
	return false
}

// Scope carries the authenticated caller's identity and organization. Every
// storage call is filtered by OrganizationID taken from here, never from
// client-supplied input.
type Scope struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Role           Role
}

type ctxKey struct{}

// WithScope stores the tenant scope in the context.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the tenant scope if present.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	if !ok || s.OrganizationID == uuid.Nil {
		return Scope{}, false
	}
	return s, true
}
