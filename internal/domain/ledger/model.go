// Package ledger owns the two stock ledgers (central warehouse and per-holder)
// and the append-only movement log. Every quantity change goes through Engine.
package ledger

import (
	"time"
)

// TransactionType classifies a movement in the log.
type TransactionType string

const (
	TypePurchase   TransactionType = "purchase"
	TypeSale       TransactionType = "sale"
	TypeReturn     TransactionType = "return"
	TypeAdjustment TransactionType = "adjustment"
	TypeTransfer   TransactionType = "transfer"
)

// Product is a catalog item together with its central warehouse quantity.
type Product struct {
	ID       string `db:"id"`
	Category string `db:"category"`
	Name     string `db:"name"`
	Model    string `db:"model"`
	Wattage  int    `db:"wattage"`
	Quantity int64  `db:"quantity"`
}

// HolderEntry is one row of the sparse (holder, product) ledger.
// Persisted rows always have Quantity > 0.
type HolderEntry struct {
	HolderID  string    `db:"holder_id"`
	ProductID string    `db:"product_id"`
	Quantity  int64     `db:"quantity"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Movement is one append-only inventory transaction.
// An empty HolderID means the central warehouse.
type Movement struct {
	ID             string          `db:"id"`
	ProductID      string          `db:"product_id"`
	HolderID       string          `db:"holder_id"`
	Type           TransactionType `db:"type"`
	Quantity       int64           `db:"quantity"`
	Reference      string          `db:"reference"`
	StockRequestID string          `db:"stock_request_id"`
	SaleID         string          `db:"sale_id"`
	StockReturnID  string          `db:"stock_return_id"`
	ActorID        string          `db:"actor_id"`
	CreatedAt      time.Time       `db:"created_at"`
}

// IsCentral reports whether the movement touched the central warehouse.
func (m Movement) IsCentral() bool { return m.HolderID == "" }

// Location addresses one ledger: the central warehouse or a holder's sub-ledger.
type Location struct {
	HolderID string
}

// CentralWarehouse is the single central ledger.
func CentralWarehouse() Location { return Location{} }

// HolderLedger addresses a holder's sub-ledger.
func HolderLedger(holderID string) Location { return Location{HolderID: holderID} }

// IsCentral reports whether l is the central warehouse.
func (l Location) IsCentral() bool { return l.HolderID == "" }

func (l Location) String() string {
	if l.IsCentral() {
		return "central warehouse"
	}
	return "holder " + l.HolderID
}

// Line is one requested quantity of a product.
// Label is only used to name the line in error messages.
type Line struct {
	ProductID string
	Quantity  int64
	Label     string
}

// Link ties log rows to the document that caused them.
type Link struct {
	StockRequestID string
	SaleID         string
	StockReturnID  string
}

// MovementFilter narrows a log query. Zero values are ignored.
type MovementFilter struct {
	ProductID      string
	HolderID       string
	CentralOnly    bool
	StockRequestID string
	SaleID         string
	StockReturnID  string
	Limit          int
}

// DefaultMovementLimit caps log queries without an explicit limit.
const DefaultMovementLimit = 100
