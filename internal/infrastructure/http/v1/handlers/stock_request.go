package handlers

import (
	"github.com/gin-gonic/gin"

	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/infrastructure/http/v1/dto"
)

// StockRequestHandler handles HTTP requests for stock requests.
type StockRequestHandler struct {
	*BaseHandler
	service *stockrequest.Service
}

// NewStockRequestHandler creates a new stock request handler.
func NewStockRequestHandler(base *BaseHandler, service *stockrequest.Service) *StockRequestHandler {
	return &StockRequestHandler{BaseHandler: base, service: service}
}

// Create handles POST /stock-requests.
func (h *StockRequestHandler) Create(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.CreateStockRequestRequest
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

// List handles GET /stock-requests.
func (h *StockRequestHandler) List(c *gin.Context) {
	var q dto.StockRequestListQuery
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

// Get handles GET /stock-requests/:id.
func (h *StockRequestHandler) Get(c *gin.Context) {
	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, req)
}

// Update handles PUT /stock-requests/:id.
func (h *StockRequestHandler) Update(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.UpdateStockRequestRequest
	if !h.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// Delete handles DELETE /stock-requests/:id.
func (h *StockRequestHandler) Delete(c *gin.Context) {
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

// Dispatch handles POST /stock-requests/:id/dispatch.
func (h *StockRequestHandler) Dispatch(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.DispatchStockRequestRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.service.Dispatch(c.Request.Context(), actor, c.Param("id"), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Reject handles POST /stock-requests/:id/reject.
func (h *StockRequestHandler) Reject(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.RejectStockRequestRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Confirm handles POST /stock-requests/:id/confirm.
func (h *StockRequestHandler) Confirm(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.ConfirmStockRequestRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}

	result, err := h.service.Confirm(c.Request.Context(), actor, c.Param("id"), req.ProofImage)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
