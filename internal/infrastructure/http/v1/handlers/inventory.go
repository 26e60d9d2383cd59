package handlers

import (
	"github.com/gin-gonic/gin"

	"voltstock/internal/domain/ledger"
	"voltstock/internal/infrastructure/http/v1/dto"
)

// InventoryHandler exposes the ledgers read-only plus central adjustments.
type InventoryHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *ledger.Service) *InventoryHandler {
	return &InventoryHandler{BaseHandler: base, service: service}
}

// CentralStock handles GET /inventory/products/:productId.
func (h *InventoryHandler) CentralStock(c *gin.Context) {
	p, err := h.service.CentralStock(c.Request.Context(), c.Param("productId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(p))
}

// HolderStock handles GET /inventory/holders/:holderId.
func (h *InventoryHandler) HolderStock(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	holderID := c.Param("holderId")
	entries, err := h.service.HolderStock(c.Request.Context(), actor, holderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromHolderEntries(holderID, entries))
}

// Transactions handles GET /inventory/transactions.
func (h *InventoryHandler) Transactions(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	movements, err := h.service.History(c.Request.Context(), actor, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromMovements(movements)})
}

// Adjust handles POST /inventory/products/:productId/adjustments.
func (h *InventoryHandler) Adjust(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.AdjustCentral(c.Request.Context(), actor, req.ToOrder(c.Param("productId")))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromProduct(p))
}
