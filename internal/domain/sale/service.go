package sale

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/id"
	"voltstock/internal/core/security"
	"voltstock/internal/core/tx"
	"voltstock/internal/core/types"
	"voltstock/internal/domain"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/ledger"
	"voltstock/pkg/logger"
)

// Reducer decrements inventory for a sale under lock.
type Reducer interface {
	ReduceForSale(ctx context.Context, actor appctx.Actor, saleID string, lines []ledger.Line) error
}

// ProductCatalog resolves product ids.
type ProductCatalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]ledger.Product, error)
}

// Service creates and deletes sales.
type Service struct {
	repo    Repository
	txm     tx.Manager
	reducer Reducer
	catalog ProductCatalog
	policy  security.Authorizer
	audit   audit.Recorder
	now     func() time.Time
}

// NewService creates a sale service.
func NewService(repo Repository, txm tx.Manager, reducer Reducer, catalog ProductCatalog, policy security.Authorizer, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:    repo,
		txm:     txm,
		reducer: reducer,
		catalog: catalog,
		policy:  policy,
		audit:   rec,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the sale and reduces inventory in the same transaction.
// If any product line cannot be covered nothing is stored.
func (s *Service) Create(ctx context.Context, actor appctx.Actor, in CreateInput) (*Sale, error) {
	if err := s.policy.Authorize(ctx, security.ActionSaleCreate, actor, nil); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	sale := &Sale{
		ID:            id.NewString(),
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CreatedByID:   actor.ID,
		CreatedByName: actor.Name,
		CreatedByRole: actor.Role,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     s.now(),
		TotalAmount:   types.Zero(),
	}

	products, err := s.resolveProducts(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	lines := make([]ledger.Line, 0, len(in.Items))
	for i, it := range in.Items {
		item := Item{
			ID:          id.NewString(),
			SaleID:      sale.ID,
			LineNo:      i + 1,
			ProductID:   strings.TrimSpace(it.ProductID),
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   types.LineTotal(it.UnitPrice, it.Quantity),
		}
		if item.ProductID != "" {
			p, ok := products[item.ProductID]
			if !ok {
				return nil, apperror.NewItemValidation(i, item.Description, fmt.Sprintf("references unknown product %s", item.ProductID))
			}
			if item.Description == "" {
				item.Description = strings.TrimSpace(p.Name + " " + p.Model)
			}
			lines = append(lines, ledger.Line{ProductID: item.ProductID, Quantity: item.Quantity, Label: item.Description})
		}
		sale.TotalAmount = sale.TotalAmount.Add(item.LineTotal)
		sale.Items = append(sale.Items, item)
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		if len(lines) > 0 {
			if err := s.reducer.ReduceForSale(ctx, actor, sale.ID, lines); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntitySale, sale.ID, audit.ActionCreate, actor, map[string]any{
			"customer_name": sale.CustomerName,
			"total_amount":  sale.TotalAmount.StringFixed(2),
			"items":         len(sale.Items),
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale created",
		"id", sale.ID,
		"items", len(sale.Items),
		"stock_lines", len(lines),
		"total_amount", sale.TotalAmount.StringFixed(2),
	)
	return sale, nil
}

// Delete removes a sale and its items. Inventory is not restocked and the
// sale's movements stay in the log.
func (s *Service) Delete(ctx context.Context, actor appctx.Actor, saleID string) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := s.repo.GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.ActionSaleDelete, actor, security.Resource{"created_by_id": sale.CreatedByID}); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, sale.ID); err != nil {
			return fmt.Errorf("delete sale: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntitySale, sale.ID, audit.ActionDelete, actor, map[string]any{
			"total_amount": sale.TotalAmount.StringFixed(2),
		}))
	})
	if err != nil {
		return err
	}

	logger.Warn(ctx, "sale deleted without restock", "id", saleID)
	return nil
}

// Get returns a sale with items.
func (s *Service) Get(ctx context.Context, saleID string) (*Sale, error) {
	return s.repo.Get(ctx, saleID)
}

// List returns sales newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error) {
	filter.Page = filter.Page.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ListResult[*Sale]{}, fmt.Errorf("list sales: %w", err)
	}
	return domain.ListResult[*Sale]{Items: items, TotalCount: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (s *Service) resolveProducts(ctx context.Context, items []ItemInput) (map[string]ledger.Product, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if pid := strings.TrimSpace(it.ProductID); pid != "" {
			ids = append(ids, pid)
		}
	}
	if len(ids) == 0 {
		return map[string]ledger.Product{}, nil
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	return products, nil
}
