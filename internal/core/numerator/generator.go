// Package numerator provides the contract for sequential document ids.
// Implementations live in the infrastructure layer.
package numerator

import (
	"context"
)

// SequenceGenerator allocates the next integer id of a table.
//
// NextSequentialID must be called inside the transaction that inserts the
// row. Implementations serialize allocation for the table until that
// transaction ends, so two concurrent inserts never receive the same id.
// The returned id is max(existing numeric ids) + 1, rendered in base 10.
type SequenceGenerator interface {
	NextSequentialID(ctx context.Context, table string) (string, error)
}

// Tables that use sequential ids.
const (
	TableStockRequests = "stock_requests"
)

// IsSequentialTable reports whether table may be passed to NextSequentialID.
func IsSequentialTable(table string) bool {
	return table == TableStockRequests
}
