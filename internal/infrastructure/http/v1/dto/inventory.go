package dto

import (
	"time"

	"voltstock/internal/domain/ledger"
)

// ProductResponse is a product with its central quantity.
type ProductResponse struct {
	ID       string `json:"id"`
	Category string `json:"category,omitempty"`
	Name     string `json:"name"`
	Model    string `json:"model,omitempty"`
	Wattage  int    `json:"wattage,omitempty"`
	Quantity int64  `json:"quantity"`
}

// FromProduct maps a ledger product.
func FromProduct(p ledger.Product) ProductResponse {
	return ProductResponse{
		ID:       p.ID,
		Category: p.Category,
		Name:     p.Name,
		Model:    p.Model,
		Wattage:  p.Wattage,
		Quantity: p.Quantity,
	}
}

// HolderEntryResponse is one product a holder keeps.
type HolderEntryResponse struct {
	ProductID string    `json:"productId"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HolderStockResponse is a holder's ledger snapshot.
type HolderStockResponse struct {
	HolderID string                `json:"holderId"`
	Items    []HolderEntryResponse `json:"items"`
	Total    int64                 `json:"total"`
}

// FromHolderEntries maps a holder snapshot.
func FromHolderEntries(holderID string, entries []ledger.HolderEntry) HolderStockResponse {
	resp := HolderStockResponse{HolderID: holderID, Items: make([]HolderEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Items = append(resp.Items, HolderEntryResponse{ProductID: e.ProductID, Quantity: e.Quantity, UpdatedAt: e.UpdatedAt})
		resp.Total += e.Quantity
	}
	return resp
}

// MovementResponse is one inventory transaction.
type MovementResponse struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	HolderID       string    `json:"holderId,omitempty"`
	Type           string    `json:"type"`
	Quantity       int64     `json:"quantity"`
	Reference      string    `json:"reference,omitempty"`
	StockRequestID string    `json:"stockRequestId,omitempty"`
	SaleID         string    `json:"saleId,omitempty"`
	StockReturnID  string    `json:"stockReturnId,omitempty"`
	ActorID        string    `json:"actorId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromMovements maps log rows.
func FromMovements(ms []ledger.Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, MovementResponse{
			ID:             m.ID,
			ProductID:      m.ProductID,
			HolderID:       m.HolderID,
			Type:           string(m.Type),
			Quantity:       m.Quantity,
			Reference:      m.Reference,
			StockRequestID: m.StockRequestID,
			SaleID:         m.SaleID,
			StockReturnID:  m.StockReturnID,
			ActorID:        m.ActorID,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out
}

// MovementQuery filters GET /inventory/transactions.
type MovementQuery struct {
	ProductID      string `form:"productId"`
	HolderID       string `form:"holderId"`
	Central        bool   `form:"central"`
	StockRequestID string `form:"stockRequestId"`
	SaleID         string `form:"saleId"`
	StockReturnID  string `form:"stockReturnId"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ToFilter converts the query to a ledger filter.
func (q MovementQuery) ToFilter() ledger.MovementFilter {
	return ledger.MovementFilter{
		ProductID:      q.ProductID,
		HolderID:       q.HolderID,
		CentralOnly:    q.Central,
		StockRequestID: q.StockRequestID,
		SaleID:         q.SaleID,
		StockReturnID:  q.StockReturnID,
		Limit:          q.Limit,
	}
}

// AdjustmentRequest receives stock into or corrects the central warehouse.
type AdjustmentRequest struct {
	Type      string `json:"type" binding:"omitempty,oneof=purchase adjustment"`
	Delta     int64  `json:"delta" binding:"required,ne=0"`
	Reference string `json:"reference" binding:"max=500"`
}

// ToOrder converts the request to a ledger order.
func (r *AdjustmentRequest) ToOrder(productID string) ledger.AdjustOrder {
	return ledger.AdjustOrder{
		ProductID: productID,
		Delta:     r.Delta,
		Type:      ledger.TransactionType(r.Type),
		Reference: r.Reference,
	}
}
