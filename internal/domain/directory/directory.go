// Package directory resolves the users that can hold or receive stock.
// The users table belongs to the authentication service; this is a read-only view.
package directory

import (
	"context"

	appctx "voltstock/internal/core/context"
)

// Holder is a user as seen by the inventory engine.
type Holder struct {
	ID     string      `db:"id"`
	Name   string      `db:"name"`
	Role   appctx.Role `db:"role"`
	Active bool        `db:"active"`
}

// Directory looks up holders by id.
type Directory interface {
	// GetHolder returns a NotFound AppError when the user does not exist.
	GetHolder(ctx context.Context, id string) (Holder, error)
}
