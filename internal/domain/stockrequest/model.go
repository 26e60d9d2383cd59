// Package stockrequest implements the stock transfer request state machine:
//
//	pending -> dispatched -> confirmed
//	pending -> rejected
//
// Dispatch is the only transition that moves stock.
package stockrequest

import (
	"fmt"
	"strings"
	"time"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/domain"
)

// Status of a stock request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusConfirmed  Status = "confirmed"
	StatusRejected   Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusDispatched, StatusRejected},
	StatusDispatched: {StatusConfirmed},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDispatched, StatusConfirmed, StatusRejected:
		return true
	}
	return false
}

// Party identifies one side of a request.
type Party struct {
	ID   string      `db:"id" json:"id"`
	Name string      `db:"name" json:"name"`
	Role appctx.Role `db:"role" json:"role"`
}

// StockRequest asks a holder (or the central warehouse) for stock.
type StockRequest struct {
	ID            string `json:"id"`
	RequestedBy   Party  `json:"requestedBy"`
	RequestedFrom Party  `json:"requestedFrom"`
	Status        Status `json:"status"`

	// Denormalized summary of the first item.
	ProductID     string `json:"productId,omitempty"`
	ProductName   string `json:"productName"`
	Model         string `json:"model,omitempty"`
	Quantity      int64  `json:"quantity"`
	TotalQuantity int64  `json:"totalQuantity"`

	Notes                  string     `json:"notes,omitempty"`
	RejectionReason        string     `json:"rejectionReason,omitempty"`
	DispatchProofImage     string     `json:"dispatchProofImage,omitempty"`
	ConfirmationProofImage string     `json:"confirmationProofImage,omitempty"`
	RequestedAt            time.Time  `json:"requestedAt"`
	DispatchedAt           *time.Time `json:"dispatchedAt,omitempty"`
	ConfirmedAt            *time.Time `json:"confirmedAt,omitempty"`
	UpdatedAt              time.Time  `json:"updatedAt"`

	Items []Item `json:"items"`
}

// Item is one requested line. ProductID may be empty when the requester
// only knows the name and model; such a request cannot be dispatched.
type Item struct {
	ID          string `db:"id" json:"id"`
	RequestID   string `db:"stock_request_id" json:"-"`
	LineNo      int    `db:"line_no" json:"lineNo"`
	ProductID   string `db:"product_id" json:"productId,omitempty"`
	ProductName string `db:"product_name" json:"productName"`
	Model       string `db:"model" json:"model,omitempty"`
	Quantity    int64  `db:"quantity" json:"quantity"`
}

// Label names the item in error messages.
func (i Item) Label() string {
	if i.Model != "" {
		return fmt.Sprintf("%s %s", i.ProductName, i.Model)
	}
	if i.ProductName != "" {
		return i.ProductName
	}
	return i.ProductID
}

// Summarize recomputes the denormalized first-item fields and the total.
func (r *StockRequest) Summarize() {
	r.TotalQuantity = 0
	for i := range r.Items {
		r.Items[i].LineNo = i + 1
		r.Items[i].RequestID = r.ID
		r.TotalQuantity += r.Items[i].Quantity
	}
	if len(r.Items) > 0 {
		first := r.Items[0]
		r.ProductID = first.ProductID
		r.ProductName = first.ProductName
		r.Model = first.Model
		r.Quantity = first.Quantity
	}
}

// ensureStatus returns a ConflictError unless the request is in want.
func (r *StockRequest) ensureStatus(want Status, action string) error {
	if r.Status != want {
		return apperror.NewConflict("stock request", string(r.Status), action).
			WithDetail("id", r.ID)
	}
	return nil
}

// ItemInput is one line of a create or update call.
type ItemInput struct {
	ProductID   string
	ProductName string
	Model       string
	Quantity    int64
}

// validateItems checks the shape of item inputs before catalog resolution.
func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return apperror.NewValidation("at least one item is required").WithDetail("field", "items")
	}
	for i, it := range items {
		label := strings.TrimSpace(it.ProductName)
		if it.Quantity <= 0 {
			return apperror.NewItemValidation(i, label, "quantity must be positive")
		}
		if strings.TrimSpace(it.ProductID) == "" && (label == "" || strings.TrimSpace(it.Model) == "") {
			return apperror.NewItemValidation(i, label, "needs a product id or both product name and model")
		}
	}
	return nil
}

// CreateInput is the payload of Create.
type CreateInput struct {
	RequestedFromID   string
	RequestedFromRole appctx.Role
	Notes             string
	Items             []ItemInput
}

// UpdateInput replaces the item set (and optionally notes) of a pending request.
type UpdateInput struct {
	Notes *string
	Items []ItemInput
}

// DispatchInput carries either a rejection reason or a dispatch proof.
type DispatchInput struct {
	RejectionReason string
	ProofImage      string
}

// ListFilter narrows List. Zero values are ignored.
type ListFilter struct {
	Status          Status
	RequestedByID   string
	RequestedFromID string
	domain.Page
}
