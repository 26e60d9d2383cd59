package memory

import (
	"context"
	"slices"
	"strings"

	"voltstock/internal/core/apperror"
	"voltstock/internal/domain/sale"
	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/domain/stockreturn"
)

func cloneRequest(r *stockrequest.StockRequest) *stockrequest.StockRequest {
	c := *r
	c.Items = slices.Clone(r.Items)
	return &c
}

func cloneSale(s *sale.Sale) *sale.Sale {
	c := *s
	c.Items = slices.Clone(s.Items)
	return &c
}

func cloneReturn(r *stockreturn.StockReturn) *stockreturn.StockReturn {
	c := *r
	return &c
}

// --- stock requests ---

// StockRequestRepo implements stockrequest.Repository.
type StockRequestRepo struct{ s *Store }

var _ stockrequest.Repository = (*StockRequestRepo)(nil)

func (r *StockRequestRepo) Create(ctx context.Context, req *stockrequest.StockRequest) error {
	return r.s.update(ctx, func(st *state) error {
		if _, exists := st.requests[req.ID]; exists {
			return apperror.NewDuplicate("stock request", "stock_requests_pkey")
		}
		st.requests[req.ID] = cloneRequest(req)
		return nil
	})
}

func (r *StockRequestRepo) Get(ctx context.Context, id string) (*stockrequest.StockRequest, error) {
	var out *stockrequest.StockRequest
	err := r.s.view(ctx, func(st *state) error {
		req, ok := st.requests[id]
		if !ok {
			return apperror.NewNotFound("stock request", id)
		}
		out = cloneRequest(req)
		return nil
	})
	return out, err
}

func (r *StockRequestRepo) GetForUpdate(ctx context.Context, id string) (*stockrequest.StockRequest, error) {
	if !r.s.inTx(ctx) {
		return nil, errNoTx
	}
	return r.Get(ctx, id)
}

func (r *StockRequestRepo) Update(ctx context.Context, req *stockrequest.StockRequest) error {
	return r.s.update(ctx, func(st *state) error {
		cur, ok := st.requests[req.ID]
		if !ok {
			return apperror.NewNotFound("stock request", req.ID)
		}
		next := cloneRequest(req)
		next.Items = cur.Items
		st.requests[req.ID] = next
		return nil
	})
}

func (r *StockRequestRepo) ReplaceItems(ctx context.Context, requestID string, items []stockrequest.Item) error {
	return r.s.update(ctx, func(st *state) error {
		cur, ok := st.requests[requestID]
		if !ok {
			return apperror.NewNotFound("stock request", requestID)
		}
		cur.Items = slices.Clone(items)
		return nil
	})
}

func (r *StockRequestRepo) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(st *state) error {
		if _, ok := st.requests[id]; !ok {
			return apperror.NewNotFound("stock request", id)
		}
		delete(st.requests, id)
		return nil
	})
}

func (r *StockRequestRepo) List(ctx context.Context, f stockrequest.ListFilter) ([]*stockrequest.StockRequest, int64, error) {
	var all []*stockrequest.StockRequest
	err := r.s.view(ctx, func(st *state) error {
		for _, req := range st.requests {
			if f.Status != "" && req.Status != f.Status {
				continue
			}
			if f.RequestedByID != "" && req.RequestedBy.ID != f.RequestedByID {
				continue
			}
			if f.RequestedFromID != "" && req.RequestedFrom.ID != f.RequestedFromID {
				continue
			}
			all = append(all, cloneRequest(req))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(all, func(a, b *stockrequest.StockRequest) int {
		if c := b.RequestedAt.Compare(a.RequestedAt); c != 0 {
			return c
		}
		return compareNumeric(b.ID, a.ID)
	})
	return page(all, f.Limit, f.Offset), int64(len(all)), nil
}

// compareNumeric orders decimal strings by value.
func compareNumeric(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// --- sales ---

// SaleRepo implements sale.Repository.
type SaleRepo struct{ s *Store }

var _ sale.Repository = (*SaleRepo)(nil)

func (r *SaleRepo) Create(ctx context.Context, sl *sale.Sale) error {
	return r.s.update(ctx, func(st *state) error {
		st.sales[sl.ID] = cloneSale(sl)
		return nil
	})
}

func (r *SaleRepo) Get(ctx context.Context, id string) (*sale.Sale, error) {
	var out *sale.Sale
	err := r.s.view(ctx, func(st *state) error {
		sl, ok := st.sales[id]
		if !ok {
			return apperror.NewNotFound("sale", id)
		}
		out = cloneSale(sl)
		return nil
	})
	return out, err
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, id string) (*sale.Sale, error) {
	if !r.s.inTx(ctx) {
		return nil, errNoTx
	}
	return r.Get(ctx, id)
}

func (r *SaleRepo) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(st *state) error {
		if _, ok := st.sales[id]; !ok {
			return apperror.NewNotFound("sale", id)
		}
		delete(st.sales, id)
		return nil
	})
}

func (r *SaleRepo) List(ctx context.Context, f sale.ListFilter) ([]*sale.Sale, int64, error) {
	var all []*sale.Sale
	err := r.s.view(ctx, func(st *state) error {
		for _, sl := range st.sales {
			if f.CreatedByID != "" && sl.CreatedByID != f.CreatedByID {
				continue
			}
			all = append(all, cloneSale(sl))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(all, func(a, b *sale.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return page(all, f.Limit, f.Offset), int64(len(all)), nil
}

// --- stock returns ---

// StockReturnRepo implements stockreturn.Repository.
type StockReturnRepo struct{ s *Store }

var _ stockreturn.Repository = (*StockReturnRepo)(nil)

func (r *StockReturnRepo) Create(ctx context.Context, ret *stockreturn.StockReturn) error {
	return r.s.update(ctx, func(st *state) error {
		st.returns[ret.ID] = cloneReturn(ret)
		return nil
	})
}

func (r *StockReturnRepo) Get(ctx context.Context, id string) (*stockreturn.StockReturn, error) {
	var out *stockreturn.StockReturn
	err := r.s.view(ctx, func(st *state) error {
		ret, ok := st.returns[id]
		if !ok {
			return apperror.NewNotFound("stock return", id)
		}
		out = cloneReturn(ret)
		return nil
	})
	return out, err
}

func (r *StockReturnRepo) GetForUpdate(ctx context.Context, id string) (*stockreturn.StockReturn, error) {
	if !r.s.inTx(ctx) {
		return nil, errNoTx
	}
	return r.Get(ctx, id)
}

func (r *StockReturnRepo) Update(ctx context.Context, ret *stockreturn.StockReturn) error {
	return r.s.update(ctx, func(st *state) error {
		if _, ok := st.returns[ret.ID]; !ok {
			return apperror.NewNotFound("stock return", ret.ID)
		}
		st.returns[ret.ID] = cloneReturn(ret)
		return nil
	})
}

func (r *StockReturnRepo) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(st *state) error {
		if _, ok := st.returns[id]; !ok {
			return apperror.NewNotFound("stock return", id)
		}
		delete(st.returns, id)
		return nil
	})
}

func (r *StockReturnRepo) List(ctx context.Context, f stockreturn.ListFilter) ([]*stockreturn.StockReturn, int64, error) {
	var all []*stockreturn.StockReturn
	err := r.s.view(ctx, func(st *state) error {
		for _, ret := range st.returns {
			if f.Status != "" && ret.Status != f.Status {
				continue
			}
			if f.HolderID != "" && ret.HolderID != f.HolderID {
				continue
			}
			all = append(all, cloneReturn(ret))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(all, func(a, b *stockreturn.StockReturn) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return page(all, f.Limit, f.Offset), int64(len(all)), nil
}
