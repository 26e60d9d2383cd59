package stockrequest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/id"
	"voltstock/internal/core/numerator"
	"voltstock/internal/core/security"
	"voltstock/internal/core/tx"
	"voltstock/internal/domain"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/directory"
	"voltstock/internal/domain/ledger"
	"voltstock/pkg/logger"
)

// Transferer moves stock between ledgers under lock.
type Transferer interface {
	Transfer(ctx context.Context, order ledger.TransferOrder) error
}

// ProductCatalog resolves product ids.
type ProductCatalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]ledger.Product, error)
}

// ServiceConfig wires the service dependencies.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	Transfers Transferer
	Catalog   ProductCatalog
	Holders   directory.Directory
	Sequence  numerator.SequenceGenerator
	Policy    security.Authorizer
	Audit     audit.Recorder
}

// Service drives stock requests through their lifecycle.
type Service struct {
	repo      Repository
	txm       tx.Manager
	transfers Transferer
	catalog   ProductCatalog
	holders   directory.Directory
	sequence  numerator.SequenceGenerator
	policy    security.Authorizer
	audit     audit.Recorder
	now       func() time.Time
}

// NewService creates a stock request service.
func NewService(cfg ServiceConfig) *Service {
	rec := cfg.Audit
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:      cfg.Repo,
		txm:       cfg.TxManager,
		transfers: cfg.Transfers,
		catalog:   cfg.Catalog,
		holders:   cfg.Holders,
		sequence:  cfg.Sequence,
		policy:    cfg.Policy,
		audit:     rec,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new pending request under the next sequential id.
func (s *Service) Create(ctx context.Context, actor appctx.Actor, in CreateInput) (*StockRequest, error) {
	if err := s.policy.Authorize(ctx, security.ActionRequestCreate, actor, nil); err != nil {
		return nil, err
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	holder, err := s.resolveHolder(ctx, actor, in.RequestedFromID, in.RequestedFromRole)
	if err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := &StockRequest{
		RequestedBy:   Party{ID: actor.ID, Name: actor.Name, Role: actor.Role},
		RequestedFrom: Party{ID: holder.ID, Name: holder.Name, Role: holder.Role},
		Status:        StatusPending,
		Notes:         strings.TrimSpace(in.Notes),
		RequestedAt:   now,
		UpdatedAt:     now,
		Items:         items,
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		nextID, err := s.sequence.NextSequentialID(ctx, numerator.TableStockRequests)
		if err != nil {
			return fmt.Errorf("allocate stock request id: %w", err)
		}
		req.ID = nextID
		req.Summarize()

		if err := s.repo.Create(ctx, req); err != nil {
			return fmt.Errorf("create stock request: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockRequest, req.ID, audit.ActionCreate, actor, map[string]any{
			"requested_from": req.RequestedFrom.ID,
			"total_quantity": req.TotalQuantity,
			"items":          len(req.Items),
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock request created",
		"id", req.ID,
		"requested_from", req.RequestedFrom.ID,
		"total_quantity", req.TotalQuantity,
	)
	return req, nil
}

// Dispatch either rejects the request (non-empty reason) or moves its stock
// from the addressed ledger to the requester. A failed transfer leaves the
// request pending and the ledgers untouched.
func (s *Service) Dispatch(ctx context.Context, actor appctx.Actor, requestID string, in DispatchInput) (*StockRequest, error) {
	var req *StockRequest
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.ActionRequestDispatch, actor, resourceOf(req)); err != nil {
			return err
		}

		if reason := strings.TrimSpace(in.RejectionReason); reason != "" {
			if err := req.ensureStatus(StatusPending, "reject"); err != nil {
				return err
			}
			return s.reject(ctx, actor, req, reason)
		}

		if err := req.ensureStatus(StatusPending, "dispatch"); err != nil {
			return err
		}
		return s.dispatch(ctx, actor, req, in.ProofImage)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock request "+string(req.Status),
		"id", req.ID,
		"requested_by", req.RequestedBy.ID,
		"requested_from", req.RequestedFrom.ID,
	)
	return req, nil
}

// Reject is Dispatch with a mandatory reason.
func (s *Service) Reject(ctx context.Context, actor appctx.Actor, requestID, reason string) (*StockRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.NewValidation("rejection reason is required").WithDetail("field", "reason")
	}
	return s.Dispatch(ctx, actor, requestID, DispatchInput{RejectionReason: reason})
}

func (s *Service) reject(ctx context.Context, actor appctx.Actor, req *StockRequest, reason string) error {
	req.Status = StatusRejected
	req.RejectionReason = reason
	req.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, req); err != nil {
		return fmt.Errorf("update stock request: %w", err)
	}
	return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockRequest, req.ID, audit.ActionReject, actor, map[string]any{
		"reason": reason,
	}))
}

func (s *Service) dispatch(ctx context.Context, actor appctx.Actor, req *StockRequest, proofImage string) error {
	lines := make([]ledger.Line, 0, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID == "" {
			return apperror.NewItemValidation(i, item.Label(), "has no product id").
				WithDetail("stock_request_id", req.ID)
		}
		lines = append(lines, ledger.Line{ProductID: item.ProductID, Quantity: item.Quantity, Label: item.Label()})
	}

	source := ledger.HolderLedger(req.RequestedFrom.ID)
	if req.RequestedFrom.Role == appctx.RoleSuperAdmin {
		source = ledger.CentralWarehouse()
	}

	order := ledger.TransferOrder{
		Source:      source,
		Destination: ledger.HolderLedger(req.RequestedBy.ID),
		IssueOnly:   !req.RequestedBy.Role.HoldsInventory(),
		Lines:       lines,
		Link:        ledger.Link{StockRequestID: req.ID},
		ActorID:     actor.ID,
		Reference: fmt.Sprintf("stock request #%s from %s to %s",
			req.ID, req.RequestedFrom.Name, req.RequestedBy.Name),
	}
	if err := s.transfers.Transfer(ctx, order); err != nil {
		return err
	}

	now := s.now()
	req.Status = StatusDispatched
	req.DispatchedAt = &now
	req.DispatchProofImage = proofImage
	req.UpdatedAt = now
	if err := s.repo.Update(ctx, req); err != nil {
		return fmt.Errorf("update stock request: %w", err)
	}
	return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockRequest, req.ID, audit.ActionDispatch, actor, map[string]any{
		"source":      source.String(),
		"proof_image": proofImage,
	}))
}

// Confirm acknowledges receipt. It does not touch the ledgers.
func (s *Service) Confirm(ctx context.Context, actor appctx.Actor, requestID, proofImage string) (*StockRequest, error) {
	var req *StockRequest
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.ActionRequestConfirm, actor, resourceOf(req)); err != nil {
			return err
		}
		if err := req.ensureStatus(StatusDispatched, "confirm"); err != nil {
			return err
		}

		now := s.now()
		req.Status = StatusConfirmed
		req.ConfirmedAt = &now
		req.ConfirmationProofImage = proofImage
		req.UpdatedAt = now
		if err := s.repo.Update(ctx, req); err != nil {
			return fmt.Errorf("update stock request: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockRequest, req.ID, audit.ActionConfirm, actor, map[string]any{
			"proof_image": proofImage,
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock request confirmed", "id", req.ID)
	return req, nil
}

// Update replaces the items of a pending request.
func (s *Service) Update(ctx context.Context, actor appctx.Actor, requestID string, in UpdateInput) (*StockRequest, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	items, err := s.resolveItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	var req *StockRequest
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.ActionRequestUpdate, actor, resourceOf(req)); err != nil {
			return err
		}
		if err := req.ensureStatus(StatusPending, "update"); err != nil {
			return err
		}

		before := req.TotalQuantity
		req.Items = items
		if in.Notes != nil {
			req.Notes = strings.TrimSpace(*in.Notes)
		}
		req.UpdatedAt = s.now()
		req.Summarize()

		if err := s.repo.ReplaceItems(ctx, req.ID, req.Items); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		if err := s.repo.Update(ctx, req); err != nil {
			return fmt.Errorf("update stock request: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockRequest, req.ID, audit.ActionUpdate, actor, map[string]any{
			"total_quantity": map[string]any{"old": before, "new": req.TotalQuantity},
			"items":          len(req.Items),
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock request updated", "id", req.ID, "total_quantity", req.TotalQuantity)
	return req, nil
}

// Delete removes a pending request.
func (s *Service) Delete(ctx context.Context, actor appctx.Actor, requestID string) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		req, err := s.repo.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(ctx, security.ActionRequestDelete, actor, resourceOf(req)); err != nil {
			return err
		}
		if err := req.ensureStatus(StatusPending, "delete"); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, req.ID); err != nil {
			return fmt.Errorf("delete stock request: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityStockRequest, req.ID, audit.ActionDelete, actor, nil))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock request deleted", "id", requestID)
	return nil
}

// Get returns a request with its items.
func (s *Service) Get(ctx context.Context, requestID string) (*StockRequest, error) {
	return s.repo.Get(ctx, requestID)
}

// List returns requests matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*StockRequest], error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.ListResult[*StockRequest]{}, apperror.NewValidation(fmt.Sprintf("unknown status %q", filter.Status))
	}
	filter.Page = filter.Page.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.ListResult[*StockRequest]{}, fmt.Errorf("list stock requests: %w", err)
	}
	return domain.ListResult[*StockRequest]{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// resolveHolder checks that requested_from names an active holder of the given role.
func (s *Service) resolveHolder(ctx context.Context, actor appctx.Actor, holderID string, role appctx.Role) (directory.Holder, error) {
	holderID = strings.TrimSpace(holderID)
	if holderID == "" {
		return directory.Holder{}, apperror.NewValidation("requested_from is required").WithDetail("field", "requested_from")
	}
	if role != appctx.RoleSuperAdmin && role != appctx.RoleAdmin {
		return directory.Holder{}, apperror.NewValidation(fmt.Sprintf("requested_from role must be super-admin or admin, got %q", role)).
			WithDetail("field", "requested_from.role")
	}
	if holderID == actor.ID {
		return directory.Holder{}, apperror.NewValidation("cannot request stock from yourself").WithDetail("field", "requested_from")
	}

	holder, err := s.holders.GetHolder(ctx, holderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return directory.Holder{}, apperror.NewValidation(fmt.Sprintf("requested_from %s does not exist", holderID)).
				WithDetail("field", "requested_from")
		}
		return directory.Holder{}, fmt.Errorf("resolve holder: %w", err)
	}
	if !holder.Active {
		return directory.Holder{}, apperror.NewValidation(fmt.Sprintf("requested_from %s is not active", holderID)).
			WithDetail("field", "requested_from")
	}
	if holder.Role != role {
		return directory.Holder{}, apperror.NewValidation(fmt.Sprintf("requested_from %s has role %s, not %s", holderID, holder.Role, role)).
			WithDetail("field", "requested_from.role")
	}
	return holder, nil
}

// resolveItems snapshots catalog name and model for items that carry a product id.
func (s *Service) resolveItems(ctx context.Context, inputs []ItemInput) ([]Item, error) {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if pid := strings.TrimSpace(in.ProductID); pid != "" {
			ids = append(ids, pid)
		}
	}

	products := map[string]ledger.Product{}
	if len(ids) > 0 {
		var err error
		products, err = s.catalog.GetProducts(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve products: %w", err)
		}
	}

	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		item := Item{
			ID:          id.NewString(),
			ProductID:   strings.TrimSpace(in.ProductID),
			ProductName: strings.TrimSpace(in.ProductName),
			Model:       strings.TrimSpace(in.Model),
			Quantity:    in.Quantity,
		}
		if item.ProductID != "" {
			p, ok := products[item.ProductID]
			if !ok {
				return nil, apperror.NewItemValidation(i, item.Label(), fmt.Sprintf("references unknown product %s", item.ProductID))
			}
			item.ProductName = p.Name
			item.Model = p.Model
		}
		items = append(items, item)
	}
	return items, nil
}

func resourceOf(req *StockRequest) security.Resource {
	return security.Resource{
		"id":                req.ID,
		"status":            string(req.Status),
		"requested_by_id":   req.RequestedBy.ID,
		"requested_from_id": req.RequestedFrom.ID,
	}
}
