package handlers

import (
	"github.com/gin-gonic/gin"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/auth"
	"voltstock/internal/domain/directory"
	"voltstock/internal/infrastructure/http/v1/dto"
)

// DevAuthHandler issues tokens for existing users. Mounted only outside production.
type DevAuthHandler struct {
	*BaseHandler
	jwt       *auth.JWTService
	directory directory.Directory
}

// NewDevAuthHandler creates a development token handler.
func NewDevAuthHandler(base *BaseHandler, jwt *auth.JWTService, dir directory.Directory) *DevAuthHandler {
	return &DevAuthHandler{BaseHandler: base, jwt: jwt, directory: dir}
}

// Token handles POST /dev/token.
func (h *DevAuthHandler) Token(c *gin.Context) {
	var req dto.DevTokenRequest
	if !h.BindJSON(c, &req) {
		return
	}

	holder, err := h.directory.GetHolder(c.Request.Context(), req.UserID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if !holder.Active {
		h.Error(c, apperror.NewForbidden("user is deactivated"))
		return
	}

	token, expiresAt, err := h.jwt.IssueToken(appctx.Actor{ID: holder.ID, Name: holder.Name, Role: holder.Role})
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	h.OK(c, dto.TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

// AuditHandler serves the audit trail of documents.
type AuditHandler struct {
	*BaseHandler
	reader audit.Reader
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(base *BaseHandler, reader audit.Reader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

var auditEntityTypes = map[string]string{
	"stock-requests": audit.EntityStockRequest,
	"sales":          audit.EntitySale,
	"stock-returns":  audit.EntityStockReturn,
}

// History handles GET /audit/:entity/:id.
func (h *AuditHandler) History(c *gin.Context) {
	entityType, ok := auditEntityTypes[c.Param("entity")]
	if !ok {
		h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("entity", c.Param("entity")))
		return
	}
	var q dto.PageQuery
	if !h.BindQuery(c, &q) {
		return
	}

	entries, err := h.reader.History(c.Request.Context(), entityType, c.Param("id"), q.Page().Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromAuditEntries(entries)})
}
