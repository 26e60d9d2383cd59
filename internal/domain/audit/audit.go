// Package audit records state changes of inventory documents.
package audit

import (
	"context"
	"time"

	appctx "voltstock/internal/core/context"
)

// Action is the audited state change.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionDispatch Action = "dispatch"
	ActionReject   Action = "reject"
	ActionConfirm  Action = "confirm"
	ActionProcess  Action = "process"
)

// Entity types.
const (
	EntityStockRequest = "stock_request"
	EntitySale         = "sale"
	EntityStockReturn  = "stock_return"
)

// Entry is one audit record. Changes may carry proof images, so sinks are
// expected to compress large payloads.
type Entry struct {
	EntityType string
	EntityID   string
	Action     Action
	ActorID    string
	ActorRole  string
	Changes    map[string]any
	CreatedAt  time.Time
}

// Recorder persists audit entries inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Reader returns the audit trail of one entity, newest first.
type Reader interface {
	History(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error)
}

// NewEntry fills the actor fields of an entry from actor.
func NewEntry(entityType, entityID string, action Action, actor appctx.Actor, changes map[string]any) Entry {
	return Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }
