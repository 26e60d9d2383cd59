package dto

import (
	"voltstock/internal/core/types"
	"voltstock/internal/domain/sale"
)

// SaleItemRequest is one sold line. UnitPrice accepts a JSON number or string.
type SaleItemRequest struct {
	ProductID   string      `json:"productId"`
	Description string      `json:"description"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
}

// CreateSaleRequest represents a request to record a sale.
type CreateSaleRequest struct {
	CustomerName string            `json:"customerName" binding:"required,max=200"`
	Notes        string            `json:"notes" binding:"max=2000"`
	Items        []SaleItemRequest `json:"items" binding:"required,min=1"`
}

// ToInput converts the request to service input.
func (r *CreateSaleRequest) ToInput() sale.CreateInput {
	items := make([]sale.ItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, sale.ItemInput{
			ProductID:   it.ProductID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return sale.CreateInput{CustomerName: r.CustomerName, Notes: r.Notes, Items: items}
}

// SaleListQuery filters GET /sales.
type SaleListQuery struct {
	CreatedBy string `form:"createdBy"`
	PageQuery
}

// ToFilter converts the query to a service filter.
func (q SaleListQuery) ToFilter() sale.ListFilter {
	return sale.ListFilter{CreatedByID: q.CreatedBy, Page: q.Page()}
}
