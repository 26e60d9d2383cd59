// Package stockreturn moves stock from an admin's ledger back to the central
// warehouse after super-admin approval.
//
// Creation checks the holder's quantity without a lock so that no lock is held
// across the approval gap. Processing re-checks under lock and may therefore
// fail with InsufficientStock if the stock was spent in between.
package stockreturn

import (
	"time"

	"voltstock/internal/domain"
)

// Status of a return.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// StockReturn is a request to give stock back to the central warehouse.
type StockReturn struct {
	ID            string     `db:"id" json:"id"`
	HolderID      string     `db:"holder_id" json:"holderId"`
	HolderName    string     `db:"holder_name" json:"holderName"`
	ProductID     string     `db:"product_id" json:"productId"`
	Quantity      int64      `db:"quantity" json:"quantity"`
	Reason        string     `db:"reason" json:"reason,omitempty"`
	Status        Status     `db:"status" json:"status"`
	ProcessedBy   string     `db:"processed_by" json:"processedBy,omitempty"`
	ProcessedDate *time.Time `db:"processed_date" json:"processedDate,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// CreateInput is the payload of Create.
type CreateInput struct {
	ProductID string
	Quantity  int64
	Reason    string
}

// ListFilter narrows List.
type ListFilter struct {
	Status   Status
	HolderID string
	domain.Page
}
