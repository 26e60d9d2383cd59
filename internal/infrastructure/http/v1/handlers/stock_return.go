package handlers

import (
	"github.com/gin-gonic/gin"

	"voltstock/internal/domain/stockreturn"
	"voltstock/internal/infrastructure/http/v1/dto"
)

// StockReturnHandler handles HTTP requests for stock returns.
type StockReturnHandler struct {
	*BaseHandler
	service *stockreturn.Service
}

// NewStockReturnHandler creates a new stock return handler.
func NewStockReturnHandler(base *BaseHandler, service *stockreturn.Service) *StockReturnHandler {
	return &StockReturnHandler{BaseHandler: base, service: service}
}

// Create handles POST /stock-returns.
func (h *StockReturnHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.CreateStockReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), actor, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, created)
}

// List handles GET /stock-returns.
func (h *StockReturnHandler) List(c *gin.Context) {
	var q dto.StockReturnListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	result, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result))
}

// Get handles GET /stock-returns/:id.
func (h *StockReturnHandler) Get(c *gin.Context) {
	ret, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// Process handles POST /stock-returns/:id/process.
func (h *StockReturnHandler) Process(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	ret, err := h.service.Process(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// Delete handles DELETE /stock-returns/:id.
func (h *StockReturnHandler) Delete(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
