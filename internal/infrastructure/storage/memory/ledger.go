package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"voltstock/internal/core/apperror"
	"voltstock/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct{ s *Store }

var _ ledger.Repository = (*LedgerRepo)(nil)

func (r *LedgerRepo) LockProduct(ctx context.Context, productID string) (ledger.Product, error) {
	var p ledger.Product
	err := r.s.locked(ctx, func(st *state) error {
		var ok bool
		if p, ok = st.products[productID]; !ok {
			return apperror.NewNotFound("product", productID)
		}
		return nil
	})
	return p, err
}

func (r *LedgerRepo) LockHolderEntry(ctx context.Context, holderID, productID string) (int64, bool, error) {
	var (
		qty   int64
		found bool
	)
	err := r.s.locked(ctx, func(st *state) error {
		e, ok := st.holders[holderKey{holderID, productID}]
		qty, found = e.Quantity, ok
		return nil
	})
	return qty, found, err
}

func (r *LedgerRepo) AdjustProductQuantity(ctx context.Context, productID string, delta int64) (int64, error) {
	var qty int64
	err := r.s.update(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID)
		}
		if p.Quantity+delta < 0 {
			return fmt.Errorf("product %s quantity would become negative", productID)
		}
		p.Quantity += delta
		st.products[productID] = p
		qty = p.Quantity
		return nil
	})
	return qty, err
}

func (r *LedgerRepo) AdjustHolderQuantity(ctx context.Context, holderID, productID string, delta int64) (int64, error) {
	var qty int64
	err := r.s.update(ctx, func(st *state) error {
		key := holderKey{holderID, productID}
		e := st.holders[key]
		if e.Quantity+delta < 0 {
			return fmt.Errorf("holder %s product %s quantity would become negative", holderID, productID)
		}
		qty = e.Quantity + delta
		if qty == 0 {
			delete(st.holders, key)
			return nil
		}
		st.holders[key] = ledger.HolderEntry{
			HolderID:  holderID,
			ProductID: productID,
			Quantity:  qty,
			UpdatedAt: time.Now().UTC(),
		}
		return nil
	})
	return qty, err
}

func (r *LedgerRepo) AppendMovements(ctx context.Context, movements []ledger.Movement) error {
	return r.s.update(ctx, func(st *state) error {
		st.movements = append(st.movements, movements...)
		return nil
	})
}

func (r *LedgerRepo) GetProduct(ctx context.Context, productID string) (ledger.Product, error) {
	var p ledger.Product
	err := r.s.view(ctx, func(st *state) error {
		var ok bool
		if p, ok = st.products[productID]; !ok {
			return apperror.NewNotFound("product", productID)
		}
		return nil
	})
	return p, err
}

func (r *LedgerRepo) GetProducts(ctx context.Context, productIDs []string) (map[string]ledger.Product, error) {
	out := make(map[string]ledger.Product, len(productIDs))
	err := r.s.view(ctx, func(st *state) error {
		for _, id := range productIDs {
			if p, ok := st.products[id]; ok {
				out[id] = p
			}
		}
		return nil
	})
	return out, err
}

func (r *LedgerRepo) GetHolderQuantity(ctx context.Context, holderID, productID string) (int64, error) {
	var qty int64
	err := r.s.view(ctx, func(st *state) error {
		qty = st.holders[holderKey{holderID, productID}].Quantity
		return nil
	})
	return qty, err
}

func (r *LedgerRepo) ListHolderEntries(ctx context.Context, holderID string) ([]ledger.HolderEntry, error) {
	var out []ledger.HolderEntry
	err := r.s.view(ctx, func(st *state) error {
		for k, e := range st.holders {
			if k.holderID == holderID {
				out = append(out, e)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b ledger.HolderEntry) int { return strings.Compare(a.ProductID, b.ProductID) })
	return out, err
}

func (r *LedgerRepo) ListMovements(ctx context.Context, f ledger.MovementFilter) ([]ledger.Movement, error) {
	var out []ledger.Movement
	err := r.s.view(ctx, func(st *state) error {
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			if f.ProductID != "" && m.ProductID != f.ProductID {
				continue
			}
			if f.HolderID != "" && m.HolderID != f.HolderID {
				continue
			}
			if f.CentralOnly && !m.IsCentral() {
				continue
			}
			if f.StockRequestID != "" && m.StockRequestID != f.StockRequestID {
				continue
			}
			if f.SaleID != "" && m.SaleID != f.SaleID {
				continue
			}
			if f.StockReturnID != "" && m.StockReturnID != f.StockReturnID {
				continue
			}
			out = append(out, m)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
		return nil
	})
	return out, err
}
