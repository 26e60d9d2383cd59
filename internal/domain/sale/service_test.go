package sale_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/security"
	"voltstock/internal/core/types"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/domain/sale"
	"voltstock/internal/infrastructure/storage/memory"
)

var (
	root = appctx.Actor{ID: "u-root", Name: "Root", Role: appctx.RoleSuperAdmin}
	ada  = appctx.Actor{ID: "u-ada", Name: "Ada", Role: appctx.RoleAdmin}
	gus  = appctx.Actor{ID: "u-gus", Name: "Gus", Role: appctx.RoleAgent}
)

func setup(t *testing.T) (*memory.Store, *sale.Service) {
	t.Helper()
	store := memory.NewStore()
	store.SeedProduct(ledger.Product{ID: "p-panel", Name: "Mono 450", Model: "M450", Quantity: 10})
	store.SeedProduct(ledger.Product{ID: "p-inv", Name: "Hybrid", Model: "H5K", Quantity: 1})

	repos := store.Repositories()
	engine := ledger.NewEngine(store, repos.Ledger)
	return store, sale.NewService(repos.Sales, store, engine, repos.Ledger, security.MustPolicy(), repos.Audit)
}

func quantities(t *testing.T, store *memory.Store, holderID, productID string) (central, held int64) {
	t.Helper()
	repo := store.Repositories().Ledger
	p, err := repo.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	held, err = repo.GetHolderQuantity(context.Background(), holderID, productID)
	require.NoError(t, err)
	return p.Quantity, held
}

func TestCreate_ComputesTotalsAndReducesCentral(t *testing.T) {
	store, svc := setup(t)

	s, err := svc.Create(context.Background(), gus, sale.CreateInput{
		CustomerName: " Solar Farm Ltd ",
		Items: []sale.ItemInput{
			{ProductID: "p-panel", Quantity: 3, UnitPrice: types.MustMoney("120.50")},
			{Description: "Installation", Quantity: 1, UnitPrice: types.MustMoney("300")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Solar Farm Ltd", s.CustomerName)
	assert.True(t, types.MustMoney("661.50").Equal(s.TotalAmount), s.TotalAmount.String())
	require.Len(t, s.Items, 2)
	assert.Equal(t, "Mono 450 M450", s.Items[0].Description)
	assert.True(t, types.MustMoney("361.50").Equal(s.Items[0].LineTotal))

	central, _ := quantities(t, store, gus.ID, "p-panel")
	assert.Equal(t, int64(7), central)

	moves := store.Movements()
	require.Len(t, moves, 1, "service lines do not touch inventory")
	assert.Equal(t, s.ID, moves[0].SaleID)
	assert.Equal(t, ledger.TypeSale, moves[0].Type)
}

func TestCreate_AdminSellsFromOwnStockFirst(t *testing.T) {
	store, svc := setup(t)
	store.SeedHolderStock(ada.ID, "p-panel", 2)

	_, err := svc.Create(context.Background(), ada, sale.CreateInput{
		CustomerName: "Roof Co",
		Items:        []sale.ItemInput{{ProductID: "p-panel", Quantity: 2, UnitPrice: types.MustMoney("100")}},
	})
	require.NoError(t, err)

	central, held := quantities(t, store, ada.ID, "p-panel")
	assert.Equal(t, int64(10), central)
	assert.Zero(t, held)
}

func TestCreate_AdminFallsBackToCentral(t *testing.T) {
	store, svc := setup(t)
	store.SeedHolderStock(ada.ID, "p-panel", 1)

	_, err := svc.Create(context.Background(), ada, sale.CreateInput{
		CustomerName: "Roof Co",
		Items:        []sale.ItemInput{{ProductID: "p-panel", Quantity: 2, UnitPrice: types.MustMoney("100")}},
	})
	require.NoError(t, err)

	central, held := quantities(t, store, ada.ID, "p-panel")
	assert.Equal(t, int64(8), central)
	assert.Equal(t, int64(1), held)
}

func TestCreate_InsufficientStoresNothing(t *testing.T) {
	store, svc := setup(t)

	_, err := svc.Create(context.Background(), gus, sale.CreateInput{
		CustomerName: "Roof Co",
		Items: []sale.ItemInput{
			{ProductID: "p-panel", Quantity: 2, UnitPrice: types.MustMoney("100")},
			{ProductID: "p-inv", Quantity: 2, UnitPrice: types.MustMoney("900")},
		},
	})
	require.True(t, apperror.IsInsufficientStock(err), "got %v", err)

	list, err := svc.List(context.Background(), sale.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
	central, _ := quantities(t, store, gus.ID, "p-panel")
	assert.Equal(t, int64(10), central)
	assert.Empty(t, store.Movements())
	assert.Empty(t, store.AuditEntries())
}

func TestCreate_Validation(t *testing.T) {
	_, svc := setup(t)

	tests := []struct {
		name  string
		input sale.CreateInput
		want  string
	}{
		{"no customer", sale.CreateInput{Items: []sale.ItemInput{{Description: "x", Quantity: 1}}}, "customer_name"},
		{"no items", sale.CreateInput{CustomerName: "c"}, "at least one item"},
		{"zero quantity", sale.CreateInput{CustomerName: "c", Items: []sale.ItemInput{{Description: "x"}}}, "quantity must be positive"},
		{"negative price", sale.CreateInput{CustomerName: "c", Items: []sale.ItemInput{{Description: "x", Quantity: 1, UnitPrice: types.MustMoney("-1")}}}, "unit price"},
		{"blank line", sale.CreateInput{CustomerName: "c", Items: []sale.ItemInput{{Quantity: 1}}}, "needs a product id"},
		{"unknown product", sale.CreateInput{CustomerName: "c", Items: []sale.ItemInput{{ProductID: "p-ghost", Quantity: 1}}}, "unknown product"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), gus, tt.input)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDelete_DoesNotRestock(t *testing.T) {
	store, svc := setup(t)
	ctx := context.Background()

	s, err := svc.Create(ctx, gus, sale.CreateInput{
		CustomerName: "Roof Co",
		Items:        []sale.ItemInput{{ProductID: "p-panel", Quantity: 4, UnitPrice: types.MustMoney("10")}},
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, ada, s.ID)
	assert.True(t, apperror.IsForbidden(err))

	require.NoError(t, svc.Delete(ctx, gus, s.ID))
	_, err = svc.Get(ctx, s.ID)
	assert.True(t, apperror.IsNotFound(err))

	central, _ := quantities(t, store, gus.ID, "p-panel")
	assert.Equal(t, int64(6), central)
	assert.Len(t, store.Movements(), 1)

	err = svc.Delete(ctx, root, s.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestList_FiltersByCreator(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()
	in := sale.CreateInput{CustomerName: "c", Items: []sale.ItemInput{{Description: "Survey", Quantity: 1}}}

	for _, actor := range []appctx.Actor{gus, gus, ada} {
		_, err := svc.Create(ctx, actor, in)
		require.NoError(t, err)
	}

	mine, err := svc.List(ctx, sale.ListFilter{CreatedByID: gus.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.TotalCount)
	assert.Len(t, mine.Items, 2)
	assert.Equal(t, 50, mine.Limit)
}
