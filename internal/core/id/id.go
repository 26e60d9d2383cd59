// Package id provides UUIDv7 generation for ledger rows, sales and returns.
// Stock requests do not use it: their ids are sequential integers.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID.
type ID = uuid.UUID

// New generates a new time-ordered UUIDv7.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// NewString is New rendered as a string, the form stored in text columns.
func NewString() string {
	return New().String()
}
