package dto

import (
	"voltstock/internal/domain/stockreturn"
)

// CreateStockReturnRequest represents a request to return stock to central.
type CreateStockReturnRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"max=2000"`
}

// ToInput converts the request to service input.
func (r *CreateStockReturnRequest) ToInput() stockreturn.CreateInput {
	return stockreturn.CreateInput{ProductID: r.ProductID, Quantity: r.Quantity, Reason: r.Reason}
}

// StockReturnListQuery filters GET /stock-returns.
type StockReturnListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending completed"`
	Holder string `form:"holderId"`
	PageQuery
}

// ToFilter converts the query to a service filter.
func (q StockReturnListQuery) ToFilter() stockreturn.ListFilter {
	return stockreturn.ListFilter{Status: stockreturn.Status(q.Status), HolderID: q.Holder, Page: q.Page()}
}
