package stockrequest

import (
	"context"
)

// Repository persists stock requests and their items.
type Repository interface {
	// Create inserts the header and all items.
	Create(ctx context.Context, req *StockRequest) error

	// Get loads a request with items. Returns NotFound AppError if absent.
	Get(ctx context.Context, id string) (*StockRequest, error)

	// GetForUpdate is Get with the header row locked until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*StockRequest, error)

	// Update writes header fields (status, timestamps, proofs, summary, notes).
	Update(ctx context.Context, req *StockRequest) error

	// ReplaceItems deletes all items of the request and inserts items.
	ReplaceItems(ctx context.Context, requestID string, items []Item) error

	// Delete removes the request and its items.
	Delete(ctx context.Context, id string) error

	// List returns headers with items, newest first, and the unpaged total.
	List(ctx context.Context, filter ListFilter) ([]*StockRequest, int64, error)
}
