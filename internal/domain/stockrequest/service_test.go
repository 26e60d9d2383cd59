package stockrequest_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/numerator"
	"voltstock/internal/core/security"
	"voltstock/internal/domain/directory"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/infrastructure/storage/memory"
)

var (
	root   = appctx.Actor{ID: "u-root", Name: "Root", Role: appctx.RoleSuperAdmin}
	ada    = appctx.Actor{ID: "u-ada", Name: "Ada", Role: appctx.RoleAdmin}
	bea    = appctx.Actor{ID: "u-bea", Name: "Bea", Role: appctx.RoleAdmin}
	gus    = appctx.Actor{ID: "u-gus", Name: "Gus", Role: appctx.RoleAgent}
	stale  = directory.Holder{ID: "u-old", Name: "Old", Role: appctx.RoleAdmin, Active: false}
	people = []appctx.Actor{root, ada, bea, gus}
)

type StockRequestSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	ledger  *memory.LedgerRepo
	service *stockrequest.Service
}

func TestStockRequestSuite(t *testing.T) {
	suite.Run(t, new(StockRequestSuite))
}

func (s *StockRequestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	for _, a := range people {
		s.store.SeedHolder(directory.Holder{ID: a.ID, Name: a.Name, Role: a.Role, Active: true})
	}
	s.store.SeedHolder(stale)
	s.store.SeedProduct(ledger.Product{ID: "p-panel", Category: "panel", Name: "Mono 450", Model: "M450", Wattage: 450, Quantity: 10})
	s.store.SeedProduct(ledger.Product{ID: "p-inv", Category: "inverter", Name: "Hybrid", Model: "H5K", Quantity: 1})

	repos := s.store.Repositories()
	s.ledger = repos.Ledger
	s.service = stockrequest.NewService(stockrequest.ServiceConfig{
		Repo:      repos.StockRequests,
		TxManager: s.store,
		Transfers: ledger.NewEngine(s.store, repos.Ledger),
		Catalog:   repos.Ledger,
		Holders:   repos.Directory,
		Sequence:  repos.Sequence,
		Policy:    security.MustPolicy(),
		Audit:     repos.Audit,
	})
}

func (s *StockRequestSuite) create(actor appctx.Actor, from appctx.Actor, items ...stockrequest.ItemInput) *stockrequest.StockRequest {
	req, err := s.service.Create(s.ctx, actor, stockrequest.CreateInput{
		RequestedFromID:   from.ID,
		RequestedFromRole: from.Role,
		Items:             items,
	})
	s.Require().NoError(err)
	return req
}

func (s *StockRequestSuite) central(productID string) int64 {
	p, err := s.ledger.GetProduct(s.ctx, productID)
	s.Require().NoError(err)
	return p.Quantity
}

func (s *StockRequestSuite) held(holderID, productID string) int64 {
	q, err := s.ledger.GetHolderQuantity(s.ctx, holderID, productID)
	s.Require().NoError(err)
	return q
}

func panels(n int64) stockrequest.ItemInput {
	return stockrequest.ItemInput{ProductID: "p-panel", Quantity: n}
}

func (s *StockRequestSuite) TestCreate_AssignsSequentialIDsAndSnapshots() {
	first := s.create(ada, root, panels(2), stockrequest.ItemInput{ProductID: "p-inv", Quantity: 1})
	second := s.create(gus, ada, panels(1))

	s.Equal("1", first.ID)
	s.Equal("2", second.ID)
	s.Equal(stockrequest.StatusPending, first.Status)
	s.Equal(int64(3), first.TotalQuantity)
	s.Equal("Mono 450", first.ProductName)
	s.Equal("M450", first.Model)
	s.Equal(int64(2), first.Quantity)
	s.Require().Len(first.Items, 2)
	s.Equal(2, first.Items[1].LineNo)
	s.Equal("Hybrid", first.Items[1].ProductName)

	got, err := s.service.Get(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(first.RequestedFrom, got.RequestedFrom)
	s.Len(s.store.AuditEntries(), 2)
}

func (s *StockRequestSuite) TestCreate_Validation() {
	tests := []struct {
		name  string
		actor appctx.Actor
		input stockrequest.CreateInput
	}{
		{"no items", ada, stockrequest.CreateInput{RequestedFromID: root.ID, RequestedFromRole: root.Role}},
		{"zero quantity", ada, stockrequest.CreateInput{RequestedFromID: root.ID, RequestedFromRole: root.Role, Items: []stockrequest.ItemInput{panels(0)}}},
		{"name without model", ada, stockrequest.CreateInput{RequestedFromID: root.ID, RequestedFromRole: root.Role,
			Items: []stockrequest.ItemInput{{ProductName: "Battery", Quantity: 1}}}},
		{"missing addressee", ada, stockrequest.CreateInput{Items: []stockrequest.ItemInput{panels(1)}}},
		{"agent addressee", ada, stockrequest.CreateInput{RequestedFromID: gus.ID, RequestedFromRole: gus.Role, Items: []stockrequest.ItemInput{panels(1)}}},
		{"self", ada, stockrequest.CreateInput{RequestedFromID: ada.ID, RequestedFromRole: ada.Role, Items: []stockrequest.ItemInput{panels(1)}}},
		{"unknown addressee", ada, stockrequest.CreateInput{RequestedFromID: "u-nobody", RequestedFromRole: appctx.RoleAdmin, Items: []stockrequest.ItemInput{panels(1)}}},
		{"inactive addressee", gus, stockrequest.CreateInput{RequestedFromID: stale.ID, RequestedFromRole: stale.Role, Items: []stockrequest.ItemInput{panels(1)}}},
		{"role mismatch", gus, stockrequest.CreateInput{RequestedFromID: bea.ID, RequestedFromRole: appctx.RoleSuperAdmin, Items: []stockrequest.ItemInput{panels(1)}}},
		{"unknown product", ada, stockrequest.CreateInput{RequestedFromID: root.ID, RequestedFromRole: root.Role,
			Items: []stockrequest.ItemInput{{ProductID: "p-ghost", Quantity: 1}}}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Create(s.ctx, tt.actor, tt.input)
			s.Require().Error(err)
			s.True(apperror.IsValidation(err), "got %v", err)
		})
	}
}

func (s *StockRequestSuite) TestCreate_SuperAdminIsForbidden() {
	_, err := s.service.Create(s.ctx, root, stockrequest.CreateInput{
		RequestedFromID: ada.ID, RequestedFromRole: ada.Role, Items: []stockrequest.ItemInput{panels(1)},
	})
	s.True(apperror.IsForbidden(err))
}

func (s *StockRequestSuite) TestDispatch_CentralToAdmin() {
	req := s.create(ada, root, panels(4))

	out, err := s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{ProofImage: "proof.jpg"})
	s.Require().NoError(err)

	s.Equal(stockrequest.StatusDispatched, out.Status)
	s.NotNil(out.DispatchedAt)
	s.Equal("proof.jpg", out.DispatchProofImage)
	s.Equal(int64(6), s.central("p-panel"))
	s.Equal(int64(4), s.held(ada.ID, "p-panel"))

	moves := s.store.Movements()
	s.Require().Len(moves, 2)
	for _, m := range moves {
		s.Equal(req.ID, m.StockRequestID)
		s.Equal(ledger.TypeTransfer, m.Type)
	}
}

func (s *StockRequestSuite) TestDispatch_AdminToAgentIssuesStock() {
	s.store.SeedHolderStock(ada.ID, "p-panel", 3)
	req := s.create(gus, ada, panels(3))

	_, err := s.service.Dispatch(s.ctx, ada, req.ID, stockrequest.DispatchInput{})
	s.Require().NoError(err)

	s.Equal(int64(10), s.central("p-panel"))
	s.Zero(s.held(ada.ID, "p-panel"))
	s.Zero(s.store.HolderRowCount())
	moves := s.store.Movements()
	s.Require().Len(moves, 1)
	s.Equal(int64(-3), moves[0].Quantity)
	s.Equal(ada.ID, moves[0].HolderID)
}

func (s *StockRequestSuite) TestDispatch_InsufficientLeavesRequestPending() {
	req := s.create(ada, root, panels(2), stockrequest.ItemInput{ProductID: "p-inv", Quantity: 5})

	_, err := s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.Require().True(apperror.IsInsufficientStock(err), "got %v", err)
	appErr, _ := apperror.AsAppError(err)
	s.Equal("p-inv", appErr.Details["product_id"])
	s.Equal(1, appErr.Details["item_index"])

	got, err := s.service.Get(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(stockrequest.StatusPending, got.Status)
	s.Nil(got.DispatchedAt)
	s.Equal(int64(10), s.central("p-panel"))
	s.Empty(s.store.Movements())
}

func (s *StockRequestSuite) TestDispatch_UnresolvedItemFails() {
	req := s.create(ada, root, panels(1), stockrequest.ItemInput{ProductName: "Lithium Pack", Model: "LP-10", Quantity: 1})

	_, err := s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.Require().True(apperror.IsValidation(err))
	s.Contains(err.Error(), `items[1] "Lithium Pack LP-10" has no product id`)
	s.Equal(int64(10), s.central("p-panel"))
}

func (s *StockRequestSuite) TestDispatch_Permissions() {
	req := s.create(gus, ada, panels(1))

	_, err := s.service.Dispatch(s.ctx, bea, req.ID, stockrequest.DispatchInput{})
	s.True(apperror.IsForbidden(err))
	_, err = s.service.Dispatch(s.ctx, gus, req.ID, stockrequest.DispatchInput{})
	s.True(apperror.IsForbidden(err))

	// super-admin may act for the addressee; stock still comes from Ada.
	s.store.SeedHolderStock(ada.ID, "p-panel", 1)
	_, err = s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.Require().NoError(err)
	s.Zero(s.held(ada.ID, "p-panel"))
	s.Equal(int64(10), s.central("p-panel"))
}

func (s *StockRequestSuite) TestDispatch_NotFound() {
	_, err := s.service.Dispatch(s.ctx, root, "404", stockrequest.DispatchInput{})
	s.True(apperror.IsNotFound(err))
}

func (s *StockRequestSuite) TestRejectAndTerminalStates() {
	req := s.create(ada, root, panels(1))

	out, err := s.service.Reject(s.ctx, root, req.ID, "out of season")
	s.Require().NoError(err)
	s.Equal(stockrequest.StatusRejected, out.Status)
	s.Equal("out of season", out.RejectionReason)

	_, err = s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.True(apperror.IsConflict(err))
	_, err = s.service.Reject(s.ctx, root, req.ID, "again")
	s.True(apperror.IsConflict(err))

	_, err = s.service.Reject(s.ctx, root, req.ID, "  ")
	s.True(apperror.IsValidation(err))
	s.Empty(s.store.Movements())
}

func (s *StockRequestSuite) TestDispatchTwiceIsConflict() {
	req := s.create(ada, root, panels(2))

	_, err := s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.Require().NoError(err)
	_, err = s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.Require().True(apperror.IsConflict(err))

	appErr, _ := apperror.AsAppError(err)
	s.Equal("dispatched", appErr.Details["status"])
	s.Equal(int64(8), s.central("p-panel"))
	s.Len(s.store.Movements(), 2)
}

func (s *StockRequestSuite) TestConfirm() {
	req := s.create(ada, root, panels(1))

	_, err := s.service.Confirm(s.ctx, ada, req.ID, "")
	s.True(apperror.IsConflict(err), "pending request cannot be confirmed")

	_, err = s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.Require().NoError(err)

	_, err = s.service.Confirm(s.ctx, root, req.ID, "")
	s.True(apperror.IsForbidden(err))

	out, err := s.service.Confirm(s.ctx, ada, req.ID, "signed.jpg")
	s.Require().NoError(err)
	s.Equal(stockrequest.StatusConfirmed, out.Status)
	s.NotNil(out.ConfirmedAt)
	s.Equal("signed.jpg", out.ConfirmationProofImage)
	s.True(out.Status.IsTerminal())

	s.Equal(int64(1), s.held(ada.ID, "p-panel"))
	s.Len(s.store.Movements(), 2)
}

func (s *StockRequestSuite) TestUpdateAndDelete() {
	req := s.create(gus, ada, panels(1))
	notes := " corrected "

	out, err := s.service.Update(s.ctx, gus, req.ID, stockrequest.UpdateInput{
		Notes: &notes,
		Items: []stockrequest.ItemInput{{ProductID: "p-inv", Quantity: 2}, panels(3)},
	})
	s.Require().NoError(err)
	s.Equal("corrected", out.Notes)
	s.Equal(int64(5), out.TotalQuantity)
	s.Equal("Hybrid", out.ProductName)

	_, err = s.service.Update(s.ctx, ada, req.ID, stockrequest.UpdateInput{Items: []stockrequest.ItemInput{panels(1)}})
	s.True(apperror.IsForbidden(err))

	s.Require().NoError(s.service.Delete(s.ctx, gus, req.ID))
	_, err = s.service.Get(s.ctx, req.ID)
	s.True(apperror.IsNotFound(err))
}

func (s *StockRequestSuite) TestDeleteRequiresPending() {
	req := s.create(ada, root, panels(1))
	_, err := s.service.Dispatch(s.ctx, root, req.ID, stockrequest.DispatchInput{})
	s.Require().NoError(err)

	err = s.service.Delete(s.ctx, root, req.ID)
	s.True(apperror.IsConflict(err))
}

func (s *StockRequestSuite) TestList() {
	s.create(ada, root, panels(1))
	s.create(bea, root, panels(1))
	third := s.create(gus, ada, panels(1))
	_, err := s.service.Reject(s.ctx, ada, third.ID, "no")
	s.Require().NoError(err)

	all, err := s.service.List(s.ctx, stockrequest.ListFilter{})
	s.Require().NoError(err)
	s.Equal(int64(3), all.TotalCount)

	fromRoot, err := s.service.List(s.ctx, stockrequest.ListFilter{RequestedFromID: root.ID})
	s.Require().NoError(err)
	s.Equal(int64(2), fromRoot.TotalCount)

	rejected, err := s.service.List(s.ctx, stockrequest.ListFilter{Status: stockrequest.StatusRejected})
	s.Require().NoError(err)
	s.Require().Len(rejected.Items, 1)
	s.Equal(third.ID, rejected.Items[0].ID)

	_, err = s.service.List(s.ctx, stockrequest.ListFilter{Status: "lost"})
	s.True(apperror.IsValidation(err))
}

func (s *StockRequestSuite) TestConcurrentDispatchesNeverOversell() {
	first := s.create(ada, root, panels(6))
	second := s.create(bea, root, panels(6))

	var (
		mu      sync.Mutex
		results = map[string]error{}
	)
	var g errgroup.Group
	for _, id := range []string{first.ID, second.ID} {
		g.Go(func() error {
			_, err := s.service.Dispatch(s.ctx, root, id, stockrequest.DispatchInput{})
			mu.Lock()
			results[id] = err
			mu.Unlock()
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	var ok, short int
	for id, err := range results {
		got, getErr := s.service.Get(s.ctx, id)
		s.Require().NoError(getErr)
		switch {
		case err == nil:
			ok++
			s.Equal(stockrequest.StatusDispatched, got.Status)
		case apperror.IsInsufficientStock(err):
			short++
			s.Equal(stockrequest.StatusPending, got.Status)
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, short)
	s.Equal(int64(4), s.central("p-panel"))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, stockrequest.StatusPending.CanTransitionTo(stockrequest.StatusDispatched))
	assert.True(t, stockrequest.StatusPending.CanTransitionTo(stockrequest.StatusRejected))
	assert.True(t, stockrequest.StatusDispatched.CanTransitionTo(stockrequest.StatusConfirmed))
	assert.False(t, stockrequest.StatusDispatched.CanTransitionTo(stockrequest.StatusRejected))
	assert.False(t, stockrequest.StatusRejected.CanTransitionTo(stockrequest.StatusDispatched))
	assert.True(t, stockrequest.StatusRejected.IsTerminal())
	assert.True(t, stockrequest.StatusConfirmed.IsTerminal())
	assert.False(t, stockrequest.StatusPending.IsTerminal())
	assert.False(t, stockrequest.Status("lost").Valid())
}

func TestSummarize(t *testing.T) {
	req := &stockrequest.StockRequest{
		ID: "7",
		Items: []stockrequest.Item{
			{ProductName: "Battery", Model: "B1", Quantity: 2},
			{ProductID: "p-panel", ProductName: "Mono 450", Quantity: 5},
		},
	}
	req.Summarize()

	require.Len(t, req.Items, 2)
	assert.Equal(t, int64(7), req.TotalQuantity)
	assert.Equal(t, "Battery", req.ProductName)
	assert.Equal(t, "B1", req.Model)
	assert.Equal(t, int64(2), req.Quantity)
	assert.Equal(t, "7", req.Items[1].RequestID)
	assert.Equal(t, 2, req.Items[1].LineNo)
}

func (s *StockRequestSuite) withSequence(seq numerator.SequenceGenerator) *stockrequest.Service {
	repos := s.store.Repositories()
	return stockrequest.NewService(stockrequest.ServiceConfig{
		Repo:      repos.StockRequests,
		TxManager: s.store,
		Transfers: ledger.NewEngine(s.store, repos.Ledger),
		Catalog:   repos.Ledger,
		Holders:   repos.Directory,
		Sequence:  seq,
		Policy:    security.MustPolicy(),
		Audit:     repos.Audit,
	})
}

func (s *StockRequestSuite) TestCreate_UsesInjectedSequence() {
	svc := s.withSequence(&numerator.MockGenerator{
		NextFunc: func(ctx context.Context, table string) (string, error) {
			s.Equal(numerator.TableStockRequests, table)
			return "1041", nil
		},
	})

	req, err := svc.Create(s.ctx, ada, stockrequest.CreateInput{
		RequestedFromID:   root.ID,
		RequestedFromRole: root.Role,
		Items:             []stockrequest.ItemInput{panels(1)},
	})
	s.Require().NoError(err)
	s.Equal("1041", req.ID)
}

func (s *StockRequestSuite) TestCreate_SequenceFailureStoresNothing() {
	svc := s.withSequence(&numerator.MockGenerator{
		NextFunc: func(context.Context, string) (string, error) {
			return "", errors.New("advisory lock timeout")
		},
	})

	_, err := svc.Create(s.ctx, ada, stockrequest.CreateInput{
		RequestedFromID:   root.ID,
		RequestedFromRole: root.Role,
		Items:             []stockrequest.ItemInput{panels(1)},
	})
	s.Require().Error(err)

	list, err := s.service.List(s.ctx, stockrequest.ListFilter{})
	s.Require().NoError(err)
	s.Zero(list.TotalCount)
	s.Empty(s.store.AuditEntries())
}
