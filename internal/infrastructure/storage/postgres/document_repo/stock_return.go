package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"voltstock/internal/domain/stockreturn"
	"voltstock/internal/infrastructure/storage/postgres"
)

const stockReturnsTable = "stock_returns"

var stockReturnColumns = postgres.ExtractDBColumns[stockreturn.StockReturn]()

// StockReturnRepo implements stockreturn.Repository.
type StockReturnRepo struct {
	baseRepo
}

var _ stockreturn.Repository = (*StockReturnRepo)(nil)

// NewStockReturnRepo creates a stock return repository.
func NewStockReturnRepo(txm *postgres.TxManager) *StockReturnRepo {
	return &StockReturnRepo{baseRepo: newBaseRepo(txm, "stock return")}
}

func (r *StockReturnRepo) Create(ctx context.Context, ret *stockreturn.StockReturn) error {
	return r.exec(ctx, r.builder.Insert(stockReturnsTable).SetMap(postgres.StructToMap(ret)), "")
}

func (r *StockReturnRepo) Get(ctx context.Context, id string) (*stockreturn.StockReturn, error) {
	var ret stockreturn.StockReturn
	q := r.builder.Select(stockReturnColumns...).From(stockReturnsTable).Where(squirrel.Eq{"id": id})
	if err := r.get(ctx, &ret, q, id); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *StockReturnRepo) GetForUpdate(ctx context.Context, id string) (*stockreturn.StockReturn, error) {
	var ret stockreturn.StockReturn
	q := r.builder.Select(stockReturnColumns...).From(stockReturnsTable).Where(squirrel.Eq{"id": id}).Suffix("FOR UPDATE")
	if err := r.get(ctx, &ret, q, id); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Update writes the mutable columns.
func (r *StockReturnRepo) Update(ctx context.Context, ret *stockreturn.StockReturn) error {
	q := r.builder.Update(stockReturnsTable).
		Set("status", string(ret.Status)).
		Set("processed_by", ret.ProcessedBy).
		Set("processed_date", ret.ProcessedDate).
		Set("reason", ret.Reason).
		Where(squirrel.Eq{"id": ret.ID})
	return r.exec(ctx, q, ret.ID)
}

func (r *StockReturnRepo) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, r.builder.Delete(stockReturnsTable).Where(squirrel.Eq{"id": id}), id)
}

func (r *StockReturnRepo) List(ctx context.Context, f stockreturn.ListFilter) ([]*stockreturn.StockReturn, int64, error) {
	q := r.builder.Select(stockReturnColumns...).From(stockReturnsTable)
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(f.Status)})
	}
	if f.HolderID != "" {
		q = q.Where(squirrel.Eq{"holder_id": f.HolderID})
	}

	total, err := r.count(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	var out []*stockreturn.StockReturn
	if err := r.selectAll(ctx, &out, paginate(q.OrderBy("created_at DESC", "id DESC"), f.Limit, f.Offset)); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
