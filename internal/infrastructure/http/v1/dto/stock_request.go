package dto

import (
	appctx "voltstock/internal/core/context"
	"voltstock/internal/domain/stockrequest"
)

// StockRequestItemRequest is one requested line.
type StockRequestItemRequest struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Model       string `json:"model"`
	Quantity    int64  `json:"quantity"`
}

func toItemInputs(items []StockRequestItemRequest) []stockrequest.ItemInput {
	out := make([]stockrequest.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, stockrequest.ItemInput{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Model:       it.Model,
			Quantity:    it.Quantity,
		})
	}
	return out
}

// CreateStockRequestRequest represents a request to create a stock request.
// Item rules are checked by the service so errors can name the item.
type CreateStockRequestRequest struct {
	RequestedFrom     string                    `json:"requestedFrom" binding:"required"`
	RequestedFromRole string                    `json:"requestedFromRole" binding:"required,holder_role"`
	Notes             string                    `json:"notes" binding:"max=2000"`
	Items             []StockRequestItemRequest `json:"items" binding:"required,min=1"`
}

// ToInput converts the request to service input.
func (r *CreateStockRequestRequest) ToInput() stockrequest.CreateInput {
	return stockrequest.CreateInput{
		RequestedFromID:   r.RequestedFrom,
		RequestedFromRole: appctx.Role(r.RequestedFromRole),
		Notes:             r.Notes,
		Items:             toItemInputs(r.Items),
	}
}

// UpdateStockRequestRequest replaces the items of a pending request.
type UpdateStockRequestRequest struct {
	Notes *string                   `json:"notes" binding:"omitempty,max=2000"`
	Items []StockRequestItemRequest `json:"items" binding:"required,min=1"`
}

// ToInput converts the request to service input.
func (r *UpdateStockRequestRequest) ToInput() stockrequest.UpdateInput {
	return stockrequest.UpdateInput{Notes: r.Notes, Items: toItemInputs(r.Items)}
}

// DispatchStockRequestRequest either rejects (with a reason) or dispatches.
type DispatchStockRequestRequest struct {
	RejectionReason string `json:"rejectionReason"`
	ProofImage      string `json:"proofImage"`
}

// ToInput converts the request to service input.
func (r *DispatchStockRequestRequest) ToInput() stockrequest.DispatchInput {
	return stockrequest.DispatchInput{RejectionReason: r.RejectionReason, ProofImage: r.ProofImage}
}

// RejectStockRequestRequest carries the rejection reason.
type RejectStockRequestRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ConfirmStockRequestRequest carries an optional receipt proof.
type ConfirmStockRequestRequest struct {
	ProofImage string `json:"proofImage"`
}

// StockRequestListQuery filters GET /stock-requests.
type StockRequestListQuery struct {
	Status        string `form:"status" binding:"omitempty,oneof=pending dispatched confirmed rejected"`
	RequestedBy   string `form:"requestedBy"`
	RequestedFrom string `form:"requestedFrom"`
	PageQuery
}

// ToFilter converts the query to a service filter.
func (q StockRequestListQuery) ToFilter() stockrequest.ListFilter {
	return stockrequest.ListFilter{
		Status:          stockrequest.Status(q.Status),
		RequestedByID:   q.RequestedBy,
		RequestedFromID: q.RequestedFrom,
		Page:            q.Page(),
	}
}
