// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// DocumentRouteHandler defines the routes every inventory document exposes.
type DocumentRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Delete(c *gin.Context)
}

// DocumentUpdateHandler is an optional interface for documents that can be edited.
type DocumentUpdateHandler interface {
	Update(c *gin.Context)
}

// RegisterDocumentRoutes registers the standard routes for a document.
// If the handler also implements DocumentUpdateHandler, PUT /:id is registered too.
//
// Usage:
//
//	handler := handlers.NewSaleHandler(baseHandler, cfg.Sales)
//	RegisterDocumentRoutes(protected.Group("/sales"), handler)
func RegisterDocumentRoutes(group *gin.RouterGroup, handler DocumentRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.DELETE("/:id", handler.Delete)

	if updater, ok := handler.(DocumentUpdateHandler); ok {
		group.PUT("/:id", updater.Update)
	}
}
