package stockreturn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/security"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/domain/stockreturn"
	"voltstock/internal/infrastructure/storage/memory"
)

var (
	root = appctx.Actor{ID: "u-root", Name: "Root", Role: appctx.RoleSuperAdmin}
	ada  = appctx.Actor{ID: "u-ada", Name: "Ada", Role: appctx.RoleAdmin}
	gus  = appctx.Actor{ID: "u-gus", Name: "Gus", Role: appctx.RoleAgent}
)

type env struct {
	store  *memory.Store
	ledger *memory.LedgerRepo
	engine *ledger.Engine
	svc    *stockreturn.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	store.SeedProduct(ledger.Product{ID: "p-panel", Name: "Mono 450", Model: "M450", Quantity: 1})
	store.SeedHolderStock(ada.ID, "p-panel", 5)

	repos := store.Repositories()
	engine := ledger.NewEngine(store, repos.Ledger)
	return &env{
		store:  store,
		ledger: repos.Ledger,
		engine: engine,
		svc:    stockreturn.NewService(repos.StockReturns, store, repos.Ledger, engine, security.MustPolicy(), repos.Audit),
	}
}

func (e *env) quantities(t *testing.T) (central, held int64) {
	t.Helper()
	p, err := e.ledger.GetProduct(context.Background(), "p-panel")
	require.NoError(t, err)
	held, err = e.ledger.GetHolderQuantity(context.Background(), ada.ID, "p-panel")
	require.NoError(t, err)
	return p.Quantity, held
}

func TestReturnFullHolding(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ret, err := e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 5, Reason: "season over"})
	require.NoError(t, err)
	assert.Equal(t, stockreturn.StatusPending, ret.Status)

	central, held := e.quantities(t)
	assert.Equal(t, int64(1), central, "creating a return moves nothing")
	assert.Equal(t, int64(5), held)

	done, err := e.svc.Process(ctx, root, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, stockreturn.StatusCompleted, done.Status)
	assert.Equal(t, root.ID, done.ProcessedBy)
	assert.NotNil(t, done.ProcessedDate)

	central, held = e.quantities(t)
	assert.Equal(t, int64(6), central)
	assert.Zero(t, held)
	assert.Zero(t, e.store.HolderRowCount())

	moves := e.store.Movements()
	require.Len(t, moves, 1)
	assert.Equal(t, ledger.TypeReturn, moves[0].Type)
	assert.True(t, moves[0].IsCentral())
	assert.Equal(t, ret.ID, moves[0].StockReturnID)

	_, err = e.svc.Process(ctx, root, ret.ID)
	assert.True(t, apperror.IsConflict(err))
	assert.Len(t, e.store.Movements(), 1)
}

func TestProcessFailsWhenStockWasSpent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ret, err := e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 4})
	require.NoError(t, err)

	require.NoError(t, e.engine.ReduceForSale(ctx, ada, "sale-1", []ledger.Line{{ProductID: "p-panel", Quantity: 3}}))

	_, err = e.svc.Process(ctx, root, ret.ID)
	require.True(t, apperror.IsInsufficientStock(err), "got %v", err)

	got, err := e.svc.Get(ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, stockreturn.StatusPending, got.Status)
	central, held := e.quantities(t)
	assert.Equal(t, int64(1), central)
	assert.Equal(t, int64(2), held)
}

func TestCreate_Rules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, gus, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 1})
	assert.True(t, apperror.IsForbidden(err))

	_, err = e.svc.Create(ctx, root, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 1})
	assert.True(t, apperror.IsForbidden(err))

	_, err = e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 6})
	assert.True(t, apperror.IsInsufficientStock(err))

	_, err = e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-ghost", Quantity: 1})
	assert.True(t, apperror.IsValidation(err))

	_, err = e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-panel"})
	assert.True(t, apperror.IsValidation(err))
}

func TestProcessRequiresSuperAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ret, err := e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 1})
	require.NoError(t, err)

	_, err = e.svc.Process(ctx, ada, ret.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = e.svc.Process(ctx, root, "missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteAndList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 1})
	require.NoError(t, err)
	second, err := e.svc.Create(ctx, ada, stockreturn.CreateInput{ProductID: "p-panel", Quantity: 2})
	require.NoError(t, err)

	_, err = e.svc.Process(ctx, root, second.ID)
	require.NoError(t, err)

	err = e.svc.Delete(ctx, ada, second.ID)
	assert.True(t, apperror.IsConflict(err))

	err = e.svc.Delete(ctx, gus, first.ID)
	assert.True(t, apperror.IsForbidden(err))

	pending, err := e.svc.List(ctx, stockreturn.ListFilter{Status: stockreturn.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, first.ID, pending.Items[0].ID)

	require.NoError(t, e.svc.Delete(ctx, ada, first.ID))
	all, err := e.svc.List(ctx, stockreturn.ListFilter{HolderID: ada.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.TotalCount)

	_, err = e.svc.List(ctx, stockreturn.ListFilter{Status: "lost"})
	assert.True(t, apperror.IsValidation(err))
}
