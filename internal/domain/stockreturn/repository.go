package stockreturn

import (
	"context"
)

// Repository persists stock returns.
type Repository interface {
	Create(ctx context.Context, r *StockReturn) error
	Get(ctx context.Context, id string) (*StockReturn, error)
	// GetForUpdate locks the return row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*StockReturn, error)
	Update(ctx context.Context, r *StockReturn) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*StockReturn, int64, error)
}
