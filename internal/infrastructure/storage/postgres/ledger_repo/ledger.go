// Package ledger_repo provides the PostgreSQL implementation of the ledgers
// and the movement log.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"voltstock/internal/core/apperror"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/infrastructure/storage/postgres"
)

const (
	productsTable     = "products"
	holderTable       = "admin_inventory"
	transactionsTable = "inventory_transactions"
)

var (
	productColumns  = postgres.ExtractDBColumns[ledger.Product]()
	holderColumns   = postgres.ExtractDBColumns[ledger.HolderEntry]()
	movementColumns = postgres.ExtractDBColumns[ledger.Movement]()
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// LockProduct takes the product row lock.
func (r *LedgerRepo) LockProduct(ctx context.Context, productID string) (ledger.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Suffix("FOR UPDATE")

	var p ledger.Product
	if err := r.get(ctx, &p, q); err != nil {
		if pgxscan.NotFound(err) {
			return ledger.Product{}, apperror.NewNotFound("product", productID)
		}
		return ledger.Product{}, fmt.Errorf("lock product %s: %w", productID, err)
	}
	return p, nil
}

// LockHolderEntry locks the holder row when it exists. A missing row is not
// locked; the product row lock taken before it already serializes the insert.
func (r *LedgerRepo) LockHolderEntry(ctx context.Context, holderID, productID string) (int64, bool, error) {
	var qty int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT quantity FROM admin_inventory
		WHERE holder_id = $1 AND product_id = $2
		FOR UPDATE
	`, holderID, productID).Scan(&qty)
	if err != nil {
		if pgxscan.NotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lock holder row: %w", err)
	}
	return qty, true, nil
}

// AdjustProductQuantity adds delta to the central quantity.
func (r *LedgerRepo) AdjustProductQuantity(ctx context.Context, productID string, delta int64) (int64, error) {
	var qty int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
		RETURNING quantity
	`, productID, delta).Scan(&qty)
	if err != nil {
		if pgxscan.NotFound(err) {
			return 0, apperror.NewNotFound("product", productID)
		}
		return 0, fmt.Errorf("update product quantity: %w", err)
	}
	return qty, nil
}

// AdjustHolderQuantity upserts the holder row and removes it once it reaches zero.
func (r *LedgerRepo) AdjustHolderQuantity(ctx context.Context, holderID, productID string, delta int64) (int64, error) {
	q := r.txm.GetQuerier(ctx)

	if delta > 0 {
		var qty int64
		err := q.QueryRow(ctx, `
			INSERT INTO admin_inventory (holder_id, product_id, quantity, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (holder_id, product_id) DO UPDATE
			SET quantity = admin_inventory.quantity + EXCLUDED.quantity, updated_at = now()
			RETURNING quantity
		`, holderID, productID, delta).Scan(&qty)
		if err != nil {
			return 0, fmt.Errorf("increase holder quantity: %w", err)
		}
		return qty, nil
	}

	// The check constraint requires quantity > 0, so an emptied row is
	// deleted in the same statement instead of being updated to zero.
	var qty int64
	err := q.QueryRow(ctx, `
		WITH current AS (
			SELECT quantity + $3 AS next
			FROM admin_inventory
			WHERE holder_id = $1 AND product_id = $2
		), removed AS (
			DELETE FROM admin_inventory
			WHERE holder_id = $1 AND product_id = $2 AND (SELECT next FROM current) = 0
			RETURNING 0::bigint AS quantity
		), updated AS (
			UPDATE admin_inventory
			SET quantity = quantity + $3, updated_at = now()
			WHERE holder_id = $1 AND product_id = $2 AND (SELECT next FROM current) <> 0
			RETURNING quantity
		)
		SELECT quantity FROM removed
		UNION ALL
		SELECT quantity FROM updated
	`, holderID, productID, delta).Scan(&qty)
	if err != nil {
		if pgxscan.NotFound(err) {
			return 0, fmt.Errorf("holder %s has no row for product %s", holderID, productID)
		}
		return 0, fmt.Errorf("decrease holder quantity: %w", err)
	}
	return qty, nil
}

// AppendMovements writes log rows, using COPY inside a transaction.
func (r *LedgerRepo) AppendMovements(ctx context.Context, movements []ledger.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, movementValues(m))
	}

	if r.inserter.CanCopy(ctx) {
		if _, err := r.inserter.CopyFromSlice(ctx, transactionsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(transactionsTable).Columns(movementColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// movementValues orders a movement as movementColumns, with NULL for the
// central warehouse and for absent document links.
func movementValues(m ledger.Movement) []any {
	return []any{
		m.ID,
		m.ProductID,
		postgres.NullIfEmpty(m.HolderID),
		string(m.Type),
		m.Quantity,
		m.Reference,
		postgres.NullIfEmpty(m.StockRequestID),
		postgres.NullIfEmpty(m.SaleID),
		postgres.NullIfEmpty(m.StockReturnID),
		m.ActorID,
		m.CreatedAt,
	}
}

// GetProduct reads a product without locking.
func (r *LedgerRepo) GetProduct(ctx context.Context, productID string) (ledger.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID})

	var p ledger.Product
	if err := r.get(ctx, &p, q); err != nil {
		if pgxscan.NotFound(err) {
			return ledger.Product{}, apperror.NewNotFound("product", productID)
		}
		return ledger.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProducts returns the products that exist among ids.
func (r *LedgerRepo) GetProducts(ctx context.Context, productIDs []string) (map[string]ledger.Product, error) {
	out := make(map[string]ledger.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productIDs})

	var products []ledger.Product
	if err := r.selectAll(ctx, &products, q); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// GetHolderQuantity returns 0 for a missing row.
func (r *LedgerRepo) GetHolderQuantity(ctx context.Context, holderID, productID string) (int64, error) {
	var qty int64
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT quantity FROM admin_inventory WHERE holder_id = $1 AND product_id = $2),
			0
		)
	`, holderID, productID).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("get holder quantity: %w", err)
	}
	return qty, nil
}

// ListHolderEntries returns a holder's rows ordered by product.
func (r *LedgerRepo) ListHolderEntries(ctx context.Context, holderID string) ([]ledger.HolderEntry, error) {
	q := r.builder.Select(holderColumns...).
		From(holderTable).
		Where(squirrel.Eq{"holder_id": holderID}).
		OrderBy("product_id")

	var entries []ledger.HolderEntry
	if err := r.selectAll(ctx, &entries, q); err != nil {
		return nil, fmt.Errorf("select holder entries: %w", err)
	}
	return entries, nil
}

// ListMovements returns log rows newest first.
func (r *LedgerRepo) ListMovements(ctx context.Context, f ledger.MovementFilter) ([]ledger.Movement, error) {
	q := r.builder.Select(
		"id", "product_id", "COALESCE(holder_id, '') AS holder_id", "type", "quantity", "reference",
		"COALESCE(stock_request_id, '') AS stock_request_id",
		"COALESCE(sale_id, '') AS sale_id",
		"COALESCE(stock_return_id, '') AS stock_return_id",
		"actor_id", "created_at",
	).From(transactionsTable)

	if f.ProductID != "" {
		q = q.Where(squirrel.Eq{"product_id": f.ProductID})
	}
	if f.HolderID != "" {
		q = q.Where(squirrel.Eq{"holder_id": f.HolderID})
	}
	if f.CentralOnly {
		q = q.Where(squirrel.Eq{"holder_id": nil})
	}
	if f.StockRequestID != "" {
		q = q.Where(squirrel.Eq{"stock_request_id": f.StockRequestID})
	}
	if f.SaleID != "" {
		q = q.Where(squirrel.Eq{"sale_id": f.SaleID})
	}
	if f.StockReturnID != "" {
		q = q.Where(squirrel.Eq{"stock_return_id": f.StockReturnID})
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	var movements []ledger.Movement
	if err := r.selectAll(ctx, &movements, q); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

func (r *LedgerRepo) get(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, r.txm.GetQuerier(ctx), dst, sql, args...)
}

func (r *LedgerRepo) selectAll(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Select(ctx, r.txm.GetQuerier(ctx), dst, sql, args...)
}
