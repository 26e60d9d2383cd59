// Package sale records customer sales and reduces inventory for them.
package sale

import (
	"strings"
	"time"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/types"
	"voltstock/internal/domain"
)

// Sale is a completed sale with its line items.
type Sale struct {
	ID            string      `json:"id"`
	CustomerName  string      `json:"customerName"`
	CreatedByID   string      `json:"createdById"`
	CreatedByName string      `json:"createdByName"`
	CreatedByRole appctx.Role `json:"createdByRole"`
	TotalAmount   types.Money `json:"totalAmount"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	Items         []Item      `json:"items"`
}

// Item is one sold line. Lines without a product id are bookkeeping only
// and never touch the ledgers.
type Item struct {
	ID          string      `db:"id" json:"id"`
	SaleID      string      `db:"sale_id" json:"-"`
	LineNo      int         `db:"line_no" json:"lineNo"`
	ProductID   string      `db:"product_id" json:"productId,omitempty"`
	Description string      `db:"description" json:"description"`
	Quantity    int64       `db:"quantity" json:"quantity"`
	UnitPrice   types.Money `db:"unit_price" json:"unitPrice"`
	LineTotal   types.Money `db:"line_total" json:"lineTotal"`
}

// ItemInput is one line of Create.
type ItemInput struct {
	ProductID   string
	Description string
	Quantity    int64
	UnitPrice   types.Money
}

// CreateInput is the payload of Create.
type CreateInput struct {
	CustomerName string
	Notes        string
	Items        []ItemInput
}

// ListFilter narrows List.
type ListFilter struct {
	CreatedByID string
	domain.Page
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.CustomerName) == "" {
		return apperror.NewValidation("customer_name is required").WithDetail("field", "customer_name")
	}
	if len(in.Items) == 0 {
		return apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	for i, it := range in.Items {
		label := strings.TrimSpace(it.Description)
		if it.Quantity <= 0 {
			return apperror.NewItemValidation(i, label, "quantity must be positive")
		}
		if it.UnitPrice.IsNegative() {
			return apperror.NewItemValidation(i, label, "unit price must not be negative")
		}
		if strings.TrimSpace(it.ProductID) == "" && label == "" {
			return apperror.NewItemValidation(i, label, "needs a product id or a description")
		}
	}
	return nil
}
