package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "voltstock/internal/core/context"
	"voltstock/internal/infrastructure/storage/memory"
)

func TestDemo_IsConsistent(t *testing.T) {
	d := Demo()

	users := map[string]bool{}
	for _, u := range d.Users {
		users[u.ID] = u.Role.HoldsInventory()
	}
	products := map[string]bool{}
	for _, p := range d.Products {
		products[p.ID] = true
		assert.GreaterOrEqual(t, p.Quantity, int64(0), p.ID)
	}
	for _, s := range d.Stock {
		assert.True(t, users[s.HolderID], "%s must be a holder", s.HolderID)
		assert.True(t, products[s.ProductID], s.ProductID)
		assert.Positive(t, s.Quantity)
	}
}

func TestLoadMemory(t *testing.T) {
	store := memory.NewStore()
	Demo().LoadMemory(store)
	repos := store.Repositories()
	ctx := context.Background()

	owner, err := repos.Directory.GetHolder(ctx, "u-owner")
	require.NoError(t, err)
	assert.Equal(t, appctx.RoleSuperAdmin, owner.Role)

	qty, err := repos.Ledger.GetHolderQuantity(ctx, "u-kyiv", "p-mono-450")
	require.NoError(t, err)
	assert.Equal(t, int64(30), qty)
	assert.Equal(t, 3, store.HolderRowCount())
}

func TestStatements(t *testing.T) {
	d := Dataset{
		Users:    Demo().Users[:1],
		Products: Demo().Products[:1],
		Stock:    Demo().Stock[:1],
	}

	stmts := d.statements()
	require.Len(t, stmts, 3)

	sql, args, err := stmts[0].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO users (id,name,role,active) VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING", sql)
	assert.Equal(t, []any{"u-owner", "Olena Owner", "super-admin", true}, args)

	sql, args, err = stmts[1].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO products (id,category,name,model,wattage,quantity) VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING", sql)
	assert.Len(t, args, 6)

	sql, _, err = stmts[2].ToSql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO admin_inventory (holder_id,product_id,quantity) VALUES ($1,$2,$3) ON CONFLICT (holder_id, product_id) DO NOTHING", sql)

	assert.Empty(t, Dataset{}.statements())
}
