package v1

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/idempotency"
	"voltstock/internal/core/security"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/auth"
	"voltstock/internal/domain/directory"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/domain/sale"
	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/domain/stockreturn"
	"voltstock/internal/infrastructure/http/v1/dto"
	"voltstock/internal/infrastructure/http/v1/handlers"
	"voltstock/internal/infrastructure/http/v1/middleware"
	"voltstock/pkg/logger"
)

// RouterConfig holds the services and infrastructure the router wires together.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator authenticates bearer tokens
	TokenValidator middleware.TokenValidator

	// Directory resolves the authenticated user on every request
	Directory directory.Directory

	// Policy guards route-level actions
	Policy security.Authorizer

	// IdempotencyStore deduplicates mutating requests; nil disables it
	IdempotencyStore idempotency.Store

	// HealthChecks are pinged by /health/ready
	HealthChecks map[string]handlers.Pinger

	// DevTokens issues tokens for seeded users; nil outside development
	DevTokens *auth.JWTService

	// AuditReader serves document history; nil hides the endpoint
	AuditReader audit.Reader

	StockRequests *stockrequest.Service
	Sales         *sale.Service
	StockReturns  *stockreturn.Service
	Inventory     *ledger.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := dto.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("register validators: %w", err)
		}
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	baseHandler := handlers.NewBaseHandler()

	v1 := router.Group("/api/v1")
	{
		registerDevRoutes(v1, baseHandler, cfg)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.TokenValidator)) // 1. Validate JWT
		protected.Use(middleware.UserContext(cfg.Directory)) // 2. Resolve the actor against the directory

		if cfg.IdempotencyStore != nil {
			protected.Use(middleware.Idempotency(cfg.IdempotencyStore))
		}

		registerDocumentRoutes(protected, baseHandler, cfg)
		registerInventoryRoutes(protected, baseHandler, cfg)
		registerAuditRoutes(protected, baseHandler, cfg)
	}

	return router, nil
}

// registerDevRoutes registers the token endpoint used outside production.
func registerDevRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.DevTokens == nil {
		return
	}
	h := handlers.NewDevAuthHandler(base, cfg.DevTokens, cfg.Directory)
	rg.POST("/dev/token", h.Token)
}

// registerDocumentRoutes registers stock request, sale and return endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	// --- STOCK REQUESTS ---
	{
		h := handlers.NewStockRequestHandler(base, cfg.StockRequests)
		group := rg.Group("/stock-requests")
		RegisterDocumentRoutes(group, h)
		group.POST("/:id/dispatch", h.Dispatch)
		group.POST("/:id/reject", h.Reject)
		group.POST("/:id/confirm", h.Confirm)
	}

	// --- SALES ---
	{
		h := handlers.NewSaleHandler(base, cfg.Sales)
		RegisterDocumentRoutes(rg.Group("/sales"), h)
	}

	// --- STOCK RETURNS ---
	{
		h := handlers.NewStockReturnHandler(base, cfg.StockReturns)
		group := rg.Group("/stock-returns")
		RegisterDocumentRoutes(group, h)
		group.POST("/:id/process", h.Process)
	}
}

// registerInventoryRoutes registers ledger read endpoints and central adjustments.
func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewInventoryHandler(base, cfg.Inventory)
	inventory := rg.Group("/inventory")
	{
		inventory.GET("/products/:productId", h.CentralStock)
		inventory.POST("/products/:productId/adjustments",
			middleware.Authorize(cfg.Policy, security.ActionInventoryAdjust), h.Adjust)
		inventory.GET("/holders/:holderId", h.HolderStock)
		inventory.GET("/transactions", h.Transactions)
	}
}

// registerAuditRoutes registers the document history endpoint.
func registerAuditRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.AuditReader == nil {
		return
	}
	h := handlers.NewAuditHandler(base, cfg.AuditReader)
	rg.GET("/audit/:entity/:id", middleware.RequireRole(appctx.RoleSuperAdmin), h.History)
}
