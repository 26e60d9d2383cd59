package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/types"
	"voltstock/internal/domain/sale"
	"voltstock/internal/infrastructure/storage/postgres"
)

const (
	salesTable     = "sales"
	saleItemsTable = "sale_items"
)

type saleRow struct {
	ID            string      `db:"id"`
	CustomerName  string      `db:"customer_name"`
	CreatedByID   string      `db:"created_by_id"`
	CreatedByName string      `db:"created_by_name"`
	CreatedByRole string      `db:"created_by_role"`
	TotalAmount   types.Money `db:"total_amount"`
	Notes         string      `db:"notes"`
	CreatedAt     time.Time   `db:"created_at"`
}

var saleColumns = postgres.ExtractDBColumns[saleRow]()

func (row saleRow) toDomain() *sale.Sale {
	return &sale.Sale{
		ID:            row.ID,
		CustomerName:  row.CustomerName,
		CreatedByID:   row.CreatedByID,
		CreatedByName: row.CreatedByName,
		CreatedByRole: appctx.Role(row.CreatedByRole),
		TotalAmount:   row.TotalAmount,
		Notes:         row.Notes,
		CreatedAt:     row.CreatedAt,
	}
}

// SaleRepo implements sale.Repository.
type SaleRepo struct {
	baseRepo
}

var _ sale.Repository = (*SaleRepo)(nil)

// NewSaleRepo creates a sale repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{baseRepo: newBaseRepo(txm, "sale")}
}

// Create inserts the sale and its items.
func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	row := saleRow{
		ID:            s.ID,
		CustomerName:  s.CustomerName,
		CreatedByID:   s.CreatedByID,
		CreatedByName: s.CreatedByName,
		CreatedByRole: string(s.CreatedByRole),
		TotalAmount:   s.TotalAmount,
		Notes:         s.Notes,
		CreatedAt:     s.CreatedAt,
	}
	if err := r.exec(ctx, r.builder.Insert(salesTable).SetMap(postgres.StructToMap(row)), ""); err != nil {
		return err
	}
	if len(s.Items) == 0 {
		return nil
	}

	q := r.builder.Insert(saleItemsTable).
		Columns("id", "sale_id", "line_no", "product_id", "description", "quantity", "unit_price", "line_total")
	for i, it := range s.Items {
		q = q.Values(it.ID, s.ID, i+1, postgres.NullIfEmpty(it.ProductID), it.Description, it.Quantity, it.UnitPrice, it.LineTotal)
	}
	return r.exec(ctx, q, "")
}

// Get loads a sale with items.
func (r *SaleRepo) Get(ctx context.Context, id string) (*sale.Sale, error) {
	return r.load(ctx, r.builder.Select(saleColumns...).From(salesTable).Where(squirrel.Eq{"id": id}), id)
}

// GetForUpdate locks the sale row.
func (r *SaleRepo) GetForUpdate(ctx context.Context, id string) (*sale.Sale, error) {
	return r.load(ctx, r.builder.Select(saleColumns...).From(salesTable).Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE"), id)
}

func (r *SaleRepo) load(ctx context.Context, q squirrel.SelectBuilder, id string) (*sale.Sale, error) {
	var row saleRow
	if err := r.get(ctx, &row, q, id); err != nil {
		return nil, err
	}
	s := row.toDomain()
	items, err := r.itemsOf(ctx, []string{s.ID})
	if err != nil {
		return nil, err
	}
	s.Items = items[s.ID]
	return s, nil
}

// Delete removes the sale and, by cascade, its items. Log rows keep their sale_id.
func (r *SaleRepo) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, r.builder.Delete(salesTable).Where(squirrel.Eq{"id": id}), id)
}

// List returns sales newest first.
func (r *SaleRepo) List(ctx context.Context, f sale.ListFilter) ([]*sale.Sale, int64, error) {
	q := r.builder.Select(saleColumns...).From(salesTable)
	if f.CreatedByID != "" {
		q = q.Where(squirrel.Eq{"created_by_id": f.CreatedByID})
	}

	total, err := r.count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	var rows []saleRow
	if err := r.selectAll(ctx, &rows, paginate(q.OrderBy("created_at DESC", "id DESC"), f.Limit, f.Offset)); err != nil {
		return nil, 0, err
	}

	out := make([]*sale.Sale, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
		ids = append(ids, row.ID)
	}
	items, err := r.itemsOf(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, s := range out {
		s.Items = items[s.ID]
	}
	return out, total, nil
}

func (r *SaleRepo) itemsOf(ctx context.Context, saleIDs []string) (map[string][]sale.Item, error) {
	out := make(map[string][]sale.Item, len(saleIDs))
	if len(saleIDs) == 0 {
		return out, nil
	}

	q := r.builder.Select(
		"id", "sale_id", "line_no", "COALESCE(product_id, '') AS product_id",
		"description", "quantity", "unit_price", "line_total",
	).From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": saleIDs}).
		OrderBy("sale_id", "line_no")

	var items []sale.Item
	if err := r.selectAll(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	for _, it := range items {
		out[it.SaleID] = append(out[it.SaleID], it)
	}
	return out, nil
}
