// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Role of an authenticated actor.
type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleAdmin      Role = "admin"
	RoleAgent      Role = "agent"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleAgent:
		return true
	}
	return false
}

// HoldsInventory reports whether actors of this role own a holder ledger.
// Agents receive stock but never keep a ledger row.
func (r Role) HoldsInventory() bool {
	return r == RoleAdmin
}

// Actor is the authenticated caller of every inventory operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// IsSuperAdmin is a shortcut used by ownership checks.
func (a Actor) IsSuperAdmin() bool { return a.Role == RoleSuperAdmin }

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ID
	}
	return ""
}

// HasRole checks if the actor in context has the given role.
func HasRole(ctx context.Context, role Role) bool {
	a := GetActor(ctx)
	return a != nil && a.Role == role
}
