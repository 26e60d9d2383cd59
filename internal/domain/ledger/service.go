package ledger

import (
	"context"
	"fmt"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/security"
)

// Service exposes read access to the ledgers and central stock corrections.
type Service struct {
	repo   Repository
	engine *Engine
	policy security.Authorizer
}

// NewService creates the ledger query service.
func NewService(repo Repository, engine *Engine, policy security.Authorizer) *Service {
	return &Service{repo: repo, engine: engine, policy: policy}
}

// CentralStock returns a product with its central quantity.
func (s *Service) CentralStock(ctx context.Context, productID string) (Product, error) {
	return s.repo.GetProduct(ctx, productID)
}

// HolderStock returns the non-empty ledger rows of a holder.
func (s *Service) HolderStock(ctx context.Context, actor appctx.Actor, holderID string) ([]HolderEntry, error) {
	if err := s.policy.Authorize(ctx, security.ActionHolderView, actor, security.Resource{"holder_id": holderID}); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHolderEntries(ctx, holderID)
	if err != nil {
		return nil, fmt.Errorf("list holder entries: %w", err)
	}
	return entries, nil
}

// History returns log rows, newest first. A log narrowed to one holder is
// visible to whoever may view that holder's stock; anything wider needs
// the history rule.
func (s *Service) History(ctx context.Context, actor appctx.Actor, filter MovementFilter) ([]Movement, error) {
	var err error
	if filter.HolderID != "" {
		err = s.policy.Authorize(ctx, security.ActionHolderView, actor, security.Resource{"holder_id": filter.HolderID})
	} else {
		err = s.policy.Authorize(ctx, security.ActionHistoryView, actor, nil)
	}
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = DefaultMovementLimit
	}
	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

// AdjustCentral records a purchase receipt or a stock count correction.
func (s *Service) AdjustCentral(ctx context.Context, actor appctx.Actor, order AdjustOrder) (Product, error) {
	if err := s.policy.Authorize(ctx, security.ActionInventoryAdjust, actor, nil); err != nil {
		return Product{}, err
	}
	if order.Type == "" {
		order.Type = TypeAdjustment
	}
	order.ActorID = actor.ID
	if order.Reference == "" {
		order.Reference = fmt.Sprintf("%s by %s", order.Type, actor.Name)
	}
	if err := s.engine.Adjust(ctx, order); err != nil {
		return Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, order.ProductID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return Product{}, err
		}
		return Product{}, fmt.Errorf("reload product: %w", err)
	}
	return product, nil
}
