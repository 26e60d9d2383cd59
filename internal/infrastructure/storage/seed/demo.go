// Package seed loads a demo dealership: users, a product catalog and some
// stock already out with branch admins.
package seed

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	appctx "voltstock/internal/core/context"
	"voltstock/internal/domain/directory"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/infrastructure/storage/memory"
	"voltstock/internal/infrastructure/storage/postgres"
)

// HolderStock is one opening balance of a holder ledger.
type HolderStock struct {
	HolderID  string
	ProductID string
	Quantity  int64
}

// Dataset is everything the seeder writes.
type Dataset struct {
	Users    []directory.Holder
	Products []ledger.Product
	Stock    []HolderStock
}

// Demo returns the demo dataset.
func Demo() Dataset {
	return Dataset{
		Users: []directory.Holder{
			{ID: "u-owner", Name: "Olena Owner", Role: appctx.RoleSuperAdmin, Active: true},
			{ID: "u-kyiv", Name: "Kyiv Branch", Role: appctx.RoleAdmin, Active: true},
			{ID: "u-lviv", Name: "Lviv Branch", Role: appctx.RoleAdmin, Active: true},
			{ID: "u-taras", Name: "Taras Field", Role: appctx.RoleAgent, Active: true},
			{ID: "u-retired", Name: "Former Agent", Role: appctx.RoleAgent, Active: false},
		},
		Products: []ledger.Product{
			{ID: "p-mono-450", Category: "panel", Name: "Mono PERC Panel", Model: "MP-450", Wattage: 450, Quantity: 120},
			{ID: "p-mono-550", Category: "panel", Name: "Bifacial Panel", Model: "BF-550", Wattage: 550, Quantity: 80},
			{ID: "p-inv-5k", Category: "inverter", Name: "Hybrid Inverter", Model: "HI-5K", Wattage: 5000, Quantity: 25},
			{ID: "p-inv-10k", Category: "inverter", Name: "Three-phase Inverter", Model: "TP-10K", Wattage: 10000, Quantity: 10},
			{ID: "p-bat-5", Category: "battery", Name: "LFP Battery 5kWh", Model: "LFP-5", Quantity: 40},
			{ID: "p-mount", Category: "mounting", Name: "Roof Mount Kit", Model: "RMK-4", Quantity: 200},
		},
		Stock: []HolderStock{
			{HolderID: "u-kyiv", ProductID: "p-mono-450", Quantity: 30},
			{HolderID: "u-kyiv", ProductID: "p-inv-5k", Quantity: 4},
			{HolderID: "u-lviv", ProductID: "p-mono-550", Quantity: 12},
		},
	}
}

// LoadMemory writes the dataset into an in-memory store.
func (d Dataset) LoadMemory(store *memory.Store) {
	for _, u := range d.Users {
		store.SeedHolder(u)
	}
	for _, p := range d.Products {
		store.SeedProduct(p)
	}
	for _, s := range d.Stock {
		store.SeedHolderStock(s.HolderID, s.ProductID, s.Quantity)
	}
}

// LoadPostgres inserts the dataset in one transaction. Existing rows are
// left untouched, so seeding twice is harmless.
func (d Dataset) LoadPostgres(ctx context.Context, txm *postgres.TxManager) error {
	stmts := d.statements()
	return txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txm.GetQuerier(ctx)
		for _, stmt := range stmts {
			sql, args, err := stmt.ToSql()
			if err != nil {
				return fmt.Errorf("build seed statement: %w", err)
			}
			if _, err := q.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
		}
		return nil
	})
}

func (d Dataset) statements() []squirrel.Sqlizer {
	b := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	var out []squirrel.Sqlizer

	if len(d.Users) > 0 {
		users := b.Insert("users").Columns("id", "name", "role", "active")
		for _, u := range d.Users {
			users = users.Values(u.ID, u.Name, string(u.Role), u.Active)
		}
		out = append(out, users.Suffix("ON CONFLICT (id) DO NOTHING"))
	}

	if len(d.Products) > 0 {
		products := b.Insert("products").Columns(postgres.ExtractDBColumns[ledger.Product]()...)
		for _, p := range d.Products {
			products = products.Values(p.ID, p.Category, p.Name, p.Model, p.Wattage, p.Quantity)
		}
		out = append(out, products.Suffix("ON CONFLICT (id) DO NOTHING"))
	}

	if len(d.Stock) > 0 {
		stock := b.Insert("admin_inventory").Columns("holder_id", "product_id", "quantity")
		for _, s := range d.Stock {
			stock = stock.Values(s.HolderID, s.ProductID, s.Quantity)
		}
		out = append(out, stock.Suffix("ON CONFLICT (holder_id, product_id) DO NOTHING"))
	}
	return out
}
