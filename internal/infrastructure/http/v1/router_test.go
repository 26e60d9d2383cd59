package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/security"
	"voltstock/internal/domain/auth"
	"voltstock/internal/domain/directory"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/domain/sale"
	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/domain/stockreturn"
	"voltstock/internal/infrastructure/cache"
	v1 "voltstock/internal/infrastructure/http/v1"
	"voltstock/internal/infrastructure/http/v1/dto"
	"voltstock/internal/infrastructure/http/v1/handlers"
	"voltstock/internal/infrastructure/http/v1/middleware"
	"voltstock/internal/infrastructure/storage/memory"
	"voltstock/pkg/logger"
)

var (
	root = appctx.Actor{ID: "u-root", Name: "Root", Role: appctx.RoleSuperAdmin}
	ada  = appctx.Actor{ID: "u-ada", Name: "Ada", Role: appctx.RoleAdmin}
	gus  = appctx.Actor{ID: "u-gus", Name: "Gus", Role: appctx.RoleAgent}
	gone = appctx.Actor{ID: "u-gone", Name: "Gone", Role: appctx.RoleAdmin}
)

type RouterSuite struct {
	suite.Suite
	store  *memory.Store
	jwt    *auth.JWTService
	router *gin.Engine
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.store = memory.NewStore()
	for _, a := range []appctx.Actor{root, ada, gus} {
		s.store.SeedHolder(directory.Holder{ID: a.ID, Name: a.Name, Role: a.Role, Active: true})
	}
	s.store.SeedHolder(directory.Holder{ID: gone.ID, Name: gone.Name, Role: gone.Role, Active: false})
	s.store.SeedProduct(ledger.Product{ID: "p-panel", Category: "panel", Name: "Mono 450", Model: "M450", Wattage: 450, Quantity: 10})

	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })

	repos := s.store.Repositories()
	policy := security.MustPolicy()
	engine := ledger.NewEngine(s.store, repos.Ledger)
	s.jwt = auth.NewJWTService(auth.DefaultJWTConfig("test-secret", "voltstock"))

	router, err := v1.NewRouter(v1.RouterConfig{
		Logger:           logger.NewNop(),
		TokenValidator:   s.jwt,
		Directory:        repos.Directory,
		Policy:           policy,
		IdempotencyStore: cache.NewIdempotencyStore(client, time.Hour),
		HealthChecks: map[string]handlers.Pinger{
			"redis": handlers.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
		},
		DevTokens:   s.jwt,
		AuditReader: repos.Audit,
		StockRequests: stockrequest.NewService(stockrequest.ServiceConfig{
			Repo:      repos.StockRequests,
			TxManager: s.store,
			Transfers: engine,
			Catalog:   repos.Ledger,
			Holders:   repos.Directory,
			Sequence:  repos.Sequence,
			Policy:    policy,
			Audit:     repos.Audit,
		}),
		Sales:        sale.NewService(repos.Sales, s.store, engine, repos.Ledger, policy, repos.Audit),
		StockReturns: stockreturn.NewService(repos.StockReturns, s.store, repos.Ledger, engine, policy, repos.Audit),
		Inventory:    ledger.NewService(repos.Ledger, engine, policy),
	})
	s.Require().NoError(err)
	s.router = router
}

func (s *RouterSuite) token(actor appctx.Actor) string {
	tok, _, err := s.jwt.IssueToken(actor)
	s.Require().NoError(err)
	return tok
}

func (s *RouterSuite) do(actor *appctx.Actor, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*actor))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *RouterSuite) errorCode(w *httptest.ResponseRecorder) string {
	var body dto.ErrorResponse
	s.decode(w, &body)
	return body.Code
}

func (s *RouterSuite) centralQuantity() int64 {
	w := s.do(&ada, http.MethodGet, "/api/v1/inventory/products/p-panel", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var p dto.ProductResponse
	s.decode(w, &p)
	return p.Quantity
}

func (s *RouterSuite) holderTotal(actor appctx.Actor) int64 {
	w := s.do(&actor, http.MethodGet, "/api/v1/inventory/holders/"+actor.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var stock dto.HolderStockResponse
	s.decode(w, &stock)
	return stock.Total
}

func (s *RouterSuite) requestFromCentral(actor appctx.Actor, qty int64) stockrequest.StockRequest {
	w := s.do(&actor, http.MethodPost, "/api/v1/stock-requests", gin.H{
		"requestedFrom":     root.ID,
		"requestedFromRole": "super-admin",
		"items":             []gin.H{{"productId": "p-panel", "quantity": qty}},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var req stockrequest.StockRequest
	s.decode(w, &req)
	return req
}

func (s *RouterSuite) TestHealth() {
	w := s.do(nil, http.MethodGet, "/health/live", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(nil, http.MethodGet, "/health/ready", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"redis":"healthy"`)
}

func (s *RouterSuite) TestAuthentication() {
	w := s.do(nil, http.MethodGet, "/api/v1/sales", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(apperror.CodeUnauthorized, s.errorCode(w))

	w = s.do(nil, http.MethodGet, "/api/v1/sales", nil, "Authorization", "Token abc")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(nil, http.MethodGet, "/api/v1/sales", nil, "Authorization", "Bearer not-a-jwt")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(&gone, http.MethodGet, "/api/v1/sales", nil)
	s.Equal(http.StatusForbidden, w.Code)

	stranger := appctx.Actor{ID: "u-ghost", Name: "Ghost", Role: appctx.RoleAdmin}
	w = s.do(&stranger, http.MethodGet, "/api/v1/sales", nil)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestRequestLifecycle() {
	req := s.requestFromCentral(ada, 3)
	s.Equal(stockrequest.StatusPending, req.Status)
	s.Equal(int64(10), s.centralQuantity())

	w := s.do(&ada, http.MethodPost, "/api/v1/stock-requests/"+req.ID+"/dispatch", nil)
	s.Equal(http.StatusForbidden, w.Code, "only the addressed holder dispatches")

	w = s.do(&root, http.MethodPost, "/api/v1/stock-requests/"+req.ID+"/dispatch", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var dispatched stockrequest.StockRequest
	s.decode(w, &dispatched)
	s.Equal(stockrequest.StatusDispatched, dispatched.Status)
	s.Equal(int64(7), s.centralQuantity())
	s.Equal(int64(3), s.holderTotal(ada))

	w = s.do(&ada, http.MethodPost, "/api/v1/stock-requests/"+req.ID+"/confirm", gin.H{"proofImage": "data:image/png;base64,AAAA"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var confirmed stockrequest.StockRequest
	s.decode(w, &confirmed)
	s.Equal(stockrequest.StatusConfirmed, confirmed.Status)

	w = s.do(&ada, http.MethodGet, "/api/v1/stock-requests?status=confirmed", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var list dto.ListResponse[stockrequest.StockRequest]
	s.decode(w, &list)
	s.Equal(int64(1), list.TotalCount)

	w = s.do(&root, http.MethodGet, "/api/v1/audit/stock-requests/"+req.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var history struct {
		Items []dto.AuditEntryResponse `json:"items"`
	}
	s.decode(w, &history)
	s.Require().Len(history.Items, 3)
	s.Equal("confirm", history.Items[0].Action)

	w = s.do(&ada, http.MethodGet, "/api/v1/audit/stock-requests/"+req.ID, nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestRejectAndUpdate() {
	req := s.requestFromCentral(ada, 2)

	w := s.do(&ada, http.MethodPut, "/api/v1/stock-requests/"+req.ID, gin.H{
		"notes": "need more",
		"items": []gin.H{{"productId": "p-panel", "quantity": 4}},
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var updated stockrequest.StockRequest
	s.decode(w, &updated)
	s.Equal(int64(4), updated.TotalQuantity)

	w = s.do(&root, http.MethodPost, "/api/v1/stock-requests/"+req.ID+"/reject", gin.H{})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(apperror.CodeValidation, s.errorCode(w))

	w = s.do(&root, http.MethodPost, "/api/v1/stock-requests/"+req.ID+"/reject", gin.H{"reason": "out of season"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(&root, http.MethodPost, "/api/v1/stock-requests/"+req.ID+"/dispatch", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(apperror.CodeConflict, s.errorCode(w))
	s.Equal(int64(10), s.centralQuantity())
}

func (s *RouterSuite) TestCreateValidation() {
	w := s.do(&ada, http.MethodPost, "/api/v1/stock-requests", gin.H{
		"requestedFrom":     root.ID,
		"requestedFromRole": "janitor",
		"items":             []gin.H{},
	})
	s.Require().Equal(http.StatusBadRequest, w.Code)

	var body dto.ErrorResponse
	s.decode(w, &body)
	s.Equal(apperror.CodeValidation, body.Code)
	fields, ok := body.Details["fields"].(map[string]any)
	s.Require().True(ok, w.Body.String())
	s.Contains(fields, "requestedFromRole")
	s.Contains(fields, "items")
}

func (s *RouterSuite) TestSaleIsIdempotent() {
	s.store.SeedHolderStock(ada.ID, "p-panel", 5)
	payload := gin.H{
		"customerName": "Rooftop Co",
		"items":        []gin.H{{"productId": "p-panel", "quantity": 2, "unitPrice": "150.00"}},
	}

	first := s.do(&ada, http.MethodPost, "/api/v1/sales", payload, middleware.HeaderIdempotencyKey, "sale-1")
	s.Require().Equal(http.StatusCreated, first.Code, first.Body.String())
	s.Empty(first.Header().Get(middleware.HeaderIdempotentReplay))

	second := s.do(&ada, http.MethodPost, "/api/v1/sales", payload, middleware.HeaderIdempotencyKey, "sale-1")
	s.Require().Equal(http.StatusCreated, second.Code)
	s.Equal("true", second.Header().Get(middleware.HeaderIdempotentReplay))
	s.JSONEq(first.Body.String(), second.Body.String())
	s.Equal(int64(3), s.holderTotal(ada))
	s.Equal(int64(10), s.centralQuantity())

	payload["customerName"] = "Someone Else"
	reused := s.do(&ada, http.MethodPost, "/api/v1/sales", payload, middleware.HeaderIdempotencyKey, "sale-1")
	s.Equal(http.StatusUnprocessableEntity, reused.Code)
	s.Equal(apperror.CodeIdempotencyMismatch, s.errorCode(reused))
}

func (s *RouterSuite) TestAgentSaleDrawsFromCentral() {
	w := s.do(&gus, http.MethodPost, "/api/v1/sales", gin.H{
		"customerName": "Farm",
		"items":        []gin.H{{"productId": "p-panel", "quantity": 4, "unitPrice": 140}},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal(int64(6), s.centralQuantity())

	var created sale.Sale
	s.decode(w, &created)
	w = s.do(&gus, http.MethodDelete, "/api/v1/sales/"+created.ID, nil)
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal(int64(6), s.centralQuantity(), "deleting a sale does not restock")
}

func (s *RouterSuite) TestFailedSaleIsReplayed() {
	payload := gin.H{
		"customerName": "Rooftop Co",
		"items":        []gin.H{{"productId": "p-panel", "quantity": 20, "unitPrice": "150.00"}},
	}

	first := s.do(&gus, http.MethodPost, "/api/v1/sales", payload, middleware.HeaderIdempotencyKey, "sale-2")
	s.Require().Equal(http.StatusBadRequest, first.Code)
	s.Equal(apperror.CodeInsufficientStock, s.errorCode(first))

	s.store.SeedProduct(ledger.Product{ID: "p-panel", Name: "Mono 450", Quantity: 50})
	second := s.do(&gus, http.MethodPost, "/api/v1/sales", payload, middleware.HeaderIdempotencyKey, "sale-2")
	s.Equal(http.StatusBadRequest, second.Code)
	s.Equal("true", second.Header().Get(middleware.HeaderIdempotentReplay))
	s.Equal(int64(50), s.centralQuantity())
}

func (s *RouterSuite) TestReturnFlow() {
	s.store.SeedHolderStock(ada.ID, "p-panel", 4)

	w := s.do(&ada, http.MethodPost, "/api/v1/stock-returns", gin.H{"productId": "p-panel", "quantity": 3, "reason": "surplus"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var ret stockreturn.StockReturn
	s.decode(w, &ret)
	s.Equal(stockreturn.StatusPending, ret.Status)

	w = s.do(&ada, http.MethodPost, "/api/v1/stock-returns/"+ret.ID+"/process", nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(&root, http.MethodPost, "/api/v1/stock-returns/"+ret.ID+"/process", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(int64(13), s.centralQuantity())
	s.Equal(int64(1), s.holderTotal(ada))

	w = s.do(&root, http.MethodGet, "/api/v1/stock-returns?status=completed&holderId="+ada.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var list dto.ListResponse[stockreturn.StockReturn]
	s.decode(w, &list)
	s.Equal(int64(1), list.TotalCount)
}

func (s *RouterSuite) TestAdjustmentsAreSuperAdminOnly() {
	w := s.do(&ada, http.MethodPost, "/api/v1/inventory/products/p-panel/adjustments", gin.H{"type": "purchase", "delta": 5})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(&root, http.MethodPost, "/api/v1/inventory/products/p-panel/adjustments", gin.H{"type": "purchase", "delta": 5, "reference": "PO-77"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal(int64(15), s.centralQuantity())

	w = s.do(&root, http.MethodGet, "/api/v1/inventory/transactions?productId=p-panel", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var log struct {
		Items []dto.MovementResponse `json:"items"`
	}
	s.decode(w, &log)
	s.Require().Len(log.Items, 1)
	s.Equal("PO-77", log.Items[0].Reference)
}

func (s *RouterSuite) TestHolderStockIsPrivate() {
	w := s.do(&gus, http.MethodGet, "/api/v1/inventory/holders/"+ada.ID, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(&root, http.MethodGet, "/api/v1/inventory/holders/"+ada.ID, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestTransactionLogIsPrivate() {
	s.store.SeedHolderStock(ada.ID, "p-panel", 5)
	w := s.do(&ada, http.MethodPost, "/api/v1/sales", gin.H{
		"customerName": "Rooftop Co",
		"items":        []gin.H{{"productId": "p-panel", "quantity": 2, "unitPrice": "150.00"}},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = s.do(&gus, http.MethodGet, "/api/v1/inventory/transactions?holderId="+ada.ID, nil)
	s.Equal(http.StatusForbidden, w.Code)
	w = s.do(&gus, http.MethodGet, "/api/v1/inventory/transactions?productId=p-panel", nil)
	s.Equal(http.StatusForbidden, w.Code)
	w = s.do(&ada, http.MethodGet, "/api/v1/inventory/transactions", nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(&ada, http.MethodGet, "/api/v1/inventory/transactions?holderId="+ada.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var log struct {
		Items []dto.MovementResponse `json:"items"`
	}
	s.decode(w, &log)
	s.Require().Len(log.Items, 1)
	s.Equal(int64(-2), log.Items[0].Quantity)

	w = s.do(&root, http.MethodGet, "/api/v1/inventory/transactions?holderId="+ada.ID, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestIdempotencyKeysArePerActor() {
	s.store.SeedHolderStock(ada.ID, "p-panel", 5)
	payload := gin.H{
		"customerName": "Rooftop Co",
		"items":        []gin.H{{"productId": "p-panel", "quantity": 1, "unitPrice": "150.00"}},
	}

	first := s.do(&ada, http.MethodPost, "/api/v1/sales", payload, middleware.HeaderIdempotencyKey, "shared")
	s.Require().Equal(http.StatusCreated, first.Code, first.Body.String())
	second := s.do(&gus, http.MethodPost, "/api/v1/sales", payload, middleware.HeaderIdempotencyKey, "shared")
	s.Require().Equal(http.StatusCreated, second.Code, second.Body.String())
	s.Empty(second.Header().Get(middleware.HeaderIdempotentReplay))

	var a, b sale.Sale
	s.decode(first, &a)
	s.decode(second, &b)
	s.NotEqual(a.ID, b.ID)
	s.Equal(int64(4), s.holderTotal(ada))
	s.Equal(int64(9), s.centralQuantity())
}

func (s *RouterSuite) TestDevToken() {
	w := s.do(nil, http.MethodPost, "/api/v1/dev/token", gin.H{"userId": gone.ID})
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(nil, http.MethodPost, "/api/v1/dev/token", gin.H{"userId": ada.ID})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var tok dto.TokenResponse
	s.decode(w, &tok)
	s.Equal("Bearer", tok.TokenType)

	w = s.do(nil, http.MethodGet, "/api/v1/sales", nil, "Authorization", "Bearer "+tok.AccessToken)
	s.Equal(http.StatusOK, w.Code)
}
