package stockreturn

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
	"voltstock/internal/domain"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/ledger"
	"voltstock/pkg/logger"
)

// Ledger is the part of the ledger the return flow needs.
type Ledger interface {
	GetProduct(ctx context.Context, productID string) (ledger.Product, error)
	GetHolderQuantity(ctx context.Context, holderID, productID string) (int64, error)
}

// Returner moves holder stock back to central under lock.
type Returner interface {
	ReturnToCentral(ctx context.Context, order ledger.ReturnOrder) error
}

// Service manages stock returns.
type Service struct {
	repo     Repository
	txm      tx.Manager
	ledger   Ledger
	returner Returner
	policy   security.Authorizer
	audit    audit.Recorder
	now      func() time.Time
}

// NewService creates a stock return service.
func NewService(repo Repository, txm tx.Manager, l Ledger, returner Returner, policy security.Authorizer, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:     repo,
		txm:      txm,
		ledger:   l,
		returner: returner,
		policy:   policy,
		audit:    rec,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a pending return for the actor's own stock.
func (s *Service) Create(ctx context.Context, actor appctx.Actor, in CreateInput) (*StockReturn, error) {
	if err := s.policy.Authorize(ctx, security.ActionReturnCreate, actor, nil); err != nil {
		return nil, err
	}
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return nil, apperror.NewValidation("product_id is required").WithDetail("field", "product_id")
	}
	if in.Quantity <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	if _, err := s.ledger.GetProduct(ctx, productID); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewValidation(fmt.Sprintf("product %s does not exist", productID)).WithDetail("field", "product_id")
		}
		return nil, fmt.Errorf("resolve product: %w", err)
	}

	held, err := s.ledger.GetHolderQuantity(ctx, actor.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("read holder quantity: %w", err)
	}
	if held < in.Quantity {
		return nil, apperror.NewInsufficientStock(productID, in.Quantity, held).
			WithDetail("source", ledger.HolderLedger(actor.ID).String())
	}

	ret := &StockReturn{
		ID:         id.NewString(),
		HolderID:   actor.ID,
		HolderName: actor.Name,
		ProductID:  productID,
		Quantity:   in.Quantity,
		Reason:     strings.TrimSpace(in.Reason),
		Status:     StatusPending,
		CreatedAt:  s.now(),
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, ret); err != nil {
			return fmt.Errorf("create stock return: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockReturn, ret.ID, audit.ActionCreate, actor, map[string]any{
			"product_id": ret.ProductID,
			"quantity":   ret.Quantity,
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock return created", "id", ret.ID, "product_id", ret.ProductID, "quantity", ret.Quantity)
	return ret, nil
}

// Process approves a pending return and moves the stock to central.
func (s *Service) Process(ctx context.Context, actor appctx.Actor, returnID string) (*StockReturn, error) {
	if err := s.policy.Authorize(ctx, security.ActionReturnProcess, actor, nil); err != nil {
		return nil, err
	}

	var ret *StockReturn
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		ret, err = s.repo.GetForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return apperror.NewConflict("stock return", string(ret.Status), "process").WithDetail("id", ret.ID)
		}

		err = s.returner.ReturnToCentral(ctx, ledger.ReturnOrder{
			HolderID:      ret.HolderID,
			ProductID:     ret.ProductID,
			Quantity:      ret.Quantity,
			StockReturnID: ret.ID,
			ActorID:       actor.ID,
			Reference:     fmt.Sprintf("stock return %s from %s", ret.ID, ret.HolderName),
		})
		if err != nil {
			return err
		}

		now := s.now()
		ret.Status = StatusCompleted
		ret.ProcessedBy = actor.ID
		ret.ProcessedDate = &now
		if err := s.repo.Update(ctx, ret); err != nil {
			return fmt.Errorf("update stock return: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockReturn, ret.ID, audit.ActionProcess, actor, nil))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock return processed", "id", ret.ID, "holder_id", ret.HolderID, "quantity", ret.Quantity)
	return ret, nil
}

// Delete withdraws a pending return.
func (s *Service) Delete(ctx context.Context, actor appctx.Actor, returnID string) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ret, err := s.repo.GetForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.ActionReturnDelete, actor, security.Resource{"holder_id": ret.HolderID}); err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return apperror.NewConflict("stock return", string(ret.Status), "delete").WithDetail("id", ret.ID)
		}
		if err := s.repo.Delete(ctx, ret.ID); err != nil {
			return fmt.Errorf("delete stock return: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockReturn, ret.ID, audit.ActionDelete, actor, nil))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock return deleted", "id", returnID)
	return nil
}

// Get returns one return.
func (s *Service) Get(ctx context.Context, returnID string) (*StockReturn, error) {
	return s.repo.Get(ctx, returnID)
}

// List returns returns newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockReturn], error) {
	if filter.Status != "" && filter.Status != StatusPending && filter.Status != StatusCompleted {
		return domain.ListResult[*StockReturn]{}, apperror.NewValidation(fmt.Sprintf("unknown status %q", filter.Status))
	}
	filter.Page = filter.Page.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ListResult[*StockReturn]{}, fmt.Errorf("list stock returns: %w", err)
	}
	return domain.ListResult[*StockReturn]{Items: items, TotalCount: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}
