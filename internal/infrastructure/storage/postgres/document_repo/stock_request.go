package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	appctx "voltstock/internal/core/context"
	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/infrastructure/storage/postgres"
)

const (
	stockRequestsTable     = "stock_requests"
	stockRequestItemsTable = "stock_request_items"
)

// stockRequestRow is the flat header row.
type stockRequestRow struct {
	ID                     string     `db:"id"`
	RequestedByID          string     `db:"requested_by_id"`
	RequestedByName        string     `db:"requested_by_name"`
	RequestedByRole        string     `db:"requested_by_role"`
	RequestedFromID        string     `db:"requested_from_id"`
	RequestedFromName      string     `db:"requested_from_name"`
	RequestedFromRole      string     `db:"requested_from_role"`
	Status                 string     `db:"status"`
	ProductID              string     `db:"product_id"`
	ProductName            string     `db:"product_name"`
	Model                  string     `db:"model"`
	Quantity               int64      `db:"quantity"`
	TotalQuantity          int64      `db:"total_quantity"`
	Notes                  string     `db:"notes"`
	RejectionReason        string     `db:"rejection_reason"`
	DispatchProofImage     string     `db:"dispatch_proof_image"`
	ConfirmationProofImage string     `db:"confirmation_proof_image"`
	RequestedAt            time.Time  `db:"requested_at"`
	DispatchedAt           *time.Time `db:"dispatched_at"`
	ConfirmedAt            *time.Time `db:"confirmed_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

var stockRequestColumns = postgres.ExtractDBColumns[stockRequestRow]()

func toStockRequestRow(req *stockrequest.StockRequest) stockRequestRow {
	return stockRequestRow{
		ID:                     req.ID,
		RequestedByID:          req.RequestedBy.ID,
		RequestedByName:        req.RequestedBy.Name,
		RequestedByRole:        string(req.RequestedBy.Role),
		RequestedFromID:        req.RequestedFrom.ID,
		RequestedFromName:      req.RequestedFrom.Name,
		RequestedFromRole:      string(req.RequestedFrom.Role),
		Status:                 string(req.Status),
		ProductID:              req.ProductID,
		ProductName:            req.ProductName,
		Model:                  req.Model,
		Quantity:               req.Quantity,
		TotalQuantity:          req.TotalQuantity,
		Notes:                  req.Notes,
		RejectionReason:        req.RejectionReason,
		DispatchProofImage:     req.DispatchProofImage,
		ConfirmationProofImage: req.ConfirmationProofImage,
		RequestedAt:            req.RequestedAt,
		DispatchedAt:           req.DispatchedAt,
		ConfirmedAt:            req.ConfirmedAt,
		UpdatedAt:              req.UpdatedAt,
	}
}

func (row stockRequestRow) toDomain() *stockrequest.StockRequest {
	return &stockrequest.StockRequest{
		ID:                     row.ID,
		RequestedBy:            stockrequest.Party{ID: row.RequestedByID, Name: row.RequestedByName, Role: appctx.Role(row.RequestedByRole)},
		RequestedFrom:          stockrequest.Party{ID: row.RequestedFromID, Name: row.RequestedFromName, Role: appctx.Role(row.RequestedFromRole)},
		Status:                 stockrequest.Status(row.Status),
		ProductID:              row.ProductID,
		ProductName:            row.ProductName,
		Model:                  row.Model,
		Quantity:               row.Quantity,
		TotalQuantity:          row.TotalQuantity,
		Notes:                  row.Notes,
		RejectionReason:        row.RejectionReason,
		DispatchProofImage:     row.DispatchProofImage,
		ConfirmationProofImage: row.ConfirmationProofImage,
		RequestedAt:            row.RequestedAt,
		DispatchedAt:           row.DispatchedAt,
		ConfirmedAt:            row.ConfirmedAt,
		UpdatedAt:              row.UpdatedAt,
	}
}

// StockRequestRepo implements stockrequest.Repository.
type StockRequestRepo struct {
	baseRepo
}

var _ stockrequest.Repository = (*StockRequestRepo)(nil)

// NewStockRequestRepo creates a stock request repository.
func NewStockRequestRepo(txm *postgres.TxManager) *StockRequestRepo {
	return &StockRequestRepo{baseRepo: newBaseRepo(txm, "stock request")}
}

func (r *StockRequestRepo) headerSelect() squirrel.SelectBuilder {
	cols := make([]string, 0, len(stockRequestColumns))
	for _, c := range stockRequestColumns {
		if c == "product_id" {
			c = "COALESCE(product_id, '') AS product_id"
		}
		cols = append(cols, c)
	}
	return r.builder.Select(cols...).From(stockRequestsTable)
}

// Create inserts the header and all items.
func (r *StockRequestRepo) Create(ctx context.Context, req *stockrequest.StockRequest) error {
	data := postgres.StructToMap(toStockRequestRow(req))
	data["product_id"] = postgres.NullIfEmpty(req.ProductID)

	if err := r.exec(ctx, r.builder.Insert(stockRequestsTable).SetMap(data), ""); err != nil {
		return err
	}
	return r.insertItems(ctx, req.ID, req.Items)
}

// Get loads a request with items.
func (r *StockRequestRepo) Get(ctx context.Context, id string) (*stockrequest.StockRequest, error) {
	return r.load(ctx, r.headerSelect().Where(squirrel.Eq{"id": id}), id)
}

// GetForUpdate locks the header row.
func (r *StockRequestRepo) GetForUpdate(ctx context.Context, id string) (*stockrequest.StockRequest, error) {
	return r.load(ctx, r.headerSelect().Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE"), id)
}

func (r *StockRequestRepo) load(ctx context.Context, q squirrel.SelectBuilder, id string) (*stockrequest.StockRequest, error) {
	var row stockRequestRow
	if err := r.get(ctx, &row, q, id); err != nil {
		return nil, err
	}
	req := row.toDomain()

	items, err := r.itemsOf(ctx, []string{req.ID})
	if err != nil {
		return nil, err
	}
	req.Items = items[req.ID]
	return req, nil
}

// Update writes the header.
func (r *StockRequestRepo) Update(ctx context.Context, req *stockrequest.StockRequest) error {
	data := postgres.StructToMap(toStockRequestRow(req))
	delete(data, "id")
	delete(data, "requested_at")
	data["product_id"] = postgres.NullIfEmpty(req.ProductID)

	q := r.builder.Update(stockRequestsTable).SetMap(data).Where(squirrel.Eq{"id": req.ID})
	return r.exec(ctx, q, req.ID)
}

// ReplaceItems swaps the item set.
func (r *StockRequestRepo) ReplaceItems(ctx context.Context, requestID string, items []stockrequest.Item) error {
	del := r.builder.Delete(stockRequestItemsTable).Where(squirrel.Eq{"stock_request_id": requestID})
	if err := r.exec(ctx, del, ""); err != nil {
		return err
	}
	return r.insertItems(ctx, requestID, items)
}

// Delete removes the request; items go with it by cascade.
func (r *StockRequestRepo) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, r.builder.Delete(stockRequestsTable).Where(squirrel.Eq{"id": id}), id)
}

// List returns requests newest first.
func (r *StockRequestRepo) List(ctx context.Context, f stockrequest.ListFilter) ([]*stockrequest.StockRequest, int64, error) {
	q := r.headerSelect()
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(f.Status)})
	}
	if f.RequestedByID != "" {
		q = q.Where(squirrel.Eq{"requested_by_id": f.RequestedByID})
	}
	if f.RequestedFromID != "" {
		q = q.Where(squirrel.Eq{"requested_from_id": f.RequestedFromID})
	}

	total, err := r.count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	q = paginate(q.OrderBy("requested_at DESC", "length(id) DESC", "id DESC"), f.Limit, f.Offset)
	var rows []stockRequestRow
	if err := r.selectAll(ctx, &rows, q); err != nil {
		return nil, 0, err
	}

	out := make([]*stockrequest.StockRequest, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
		ids = append(ids, row.ID)
	}
	items, err := r.itemsOf(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, req := range out {
		req.Items = items[req.ID]
	}
	return out, total, nil
}

func (r *StockRequestRepo) insertItems(ctx context.Context, requestID string, items []stockrequest.Item) error {
	if len(items) == 0 {
		return nil
	}
	q := r.builder.Insert(stockRequestItemsTable).
		Columns("id", "stock_request_id", "line_no", "product_id", "product_name", "model", "quantity")
	for i, it := range items {
		q = q.Values(it.ID, requestID, i+1, postgres.NullIfEmpty(it.ProductID), it.ProductName, it.Model, it.Quantity)
	}
	return r.exec(ctx, q, "")
}

func (r *StockRequestRepo) itemsOf(ctx context.Context, requestIDs []string) (map[string][]stockrequest.Item, error) {
	out := make(map[string][]stockrequest.Item, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}

	q := r.builder.Select(
		"id", "stock_request_id", "line_no", "COALESCE(product_id, '') AS product_id",
		"product_name", "model", "quantity",
	).From(stockRequestItemsTable).
		Where(squirrel.Eq{"stock_request_id": requestIDs}).
		OrderBy("stock_request_id", "line_no")

	var items []stockrequest.Item
	if err := r.selectAll(ctx, &items, q); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	for _, it := range items {
		out[it.RequestID] = append(out[it.RequestID], it)
	}
	return out, nil
}
