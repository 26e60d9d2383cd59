package ledger

import (
	"context"
)

// Repository is the storage contract of the ledgers.
//
// Lock* methods must be called inside a transaction; they hold the row lock
// until commit or rollback. Adjust* methods apply a signed delta atomically and
// rely on the caller having validated availability under lock.
type Repository interface {
	// LockProduct locks the product row and returns it with its central quantity.
	// Returns a NotFound AppError when the product does not exist.
	LockProduct(ctx context.Context, productID string) (Product, error)

	// LockHolderEntry locks the (holder, product) row if it exists.
	// A missing row reports found=false and quantity 0.
	LockHolderEntry(ctx context.Context, holderID, productID string) (quantity int64, found bool, err error)

	// AdjustProductQuantity adds delta to the central quantity and returns the new value.
	AdjustProductQuantity(ctx context.Context, productID string, delta int64) (int64, error)

	// AdjustHolderQuantity adds delta to the holder row, creating it when absent
	// and deleting it when the result is zero. Returns the new quantity.
	AdjustHolderQuantity(ctx context.Context, holderID, productID string, delta int64) (int64, error)

	// AppendMovements writes log rows. The log is never updated or deleted.
	AppendMovements(ctx context.Context, movements []Movement) error

	// Reads without locks.

	GetProduct(ctx context.Context, productID string) (Product, error)
	GetProducts(ctx context.Context, productIDs []string) (map[string]Product, error)
	GetHolderQuantity(ctx context.Context, holderID, productID string) (int64, error)
	ListHolderEntries(ctx context.Context, holderID string) ([]HolderEntry, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}
