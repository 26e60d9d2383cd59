package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/id"
	"voltstock/internal/core/tx"
	"voltstock/pkg/logger"
)

// Engine is the only writer of both ledgers.
//
// Every public method runs lock -> validate -> mutate -> append inside one
// transaction, joining the caller's transaction when ctx already carries one.
// Lock order is global: products in ascending id, and per product the product
// row first, then holder rows in ascending holder id.
type Engine struct {
	txm  tx.Manager
	repo Repository
	now  func() time.Time
}

// NewEngine creates the ledger engine.
func NewEngine(txm tx.Manager, repo Repository) *Engine {
	return &Engine{
		txm:  txm,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// TransferOrder moves stock between two ledgers.
type TransferOrder struct {
	Source      Location
	Destination Location
	// IssueOnly marks a destination that keeps no ledger, such as an agent.
	// Stock leaves the system and only the outflow row is logged.
	IssueOnly bool
	Lines     []Line
	Link      Link
	ActorID   string
	Reference string
}

// ReturnOrder moves a holder's stock back to the central warehouse.
type ReturnOrder struct {
	HolderID      string
	ProductID     string
	Quantity      int64
	StockReturnID string
	ActorID       string
	Reference     string
}

// AdjustOrder changes central stock outside of any transfer (receipts, counts).
type AdjustOrder struct {
	ProductID string
	Delta     int64
	Type      TransactionType
	ActorID   string
	Reference string
}

// demand is the aggregated quantity of one product across order lines.
type demand struct {
	productID string
	quantity  int64
	firstLine int
	label     string
}

// lockedRows holds what was read under lock for one product.
type lockedRows struct {
	product Product
	holders map[string]int64
}

func (r lockedRows) available(loc Location) int64 {
	if loc.IsCentral() {
		return r.product.Quantity
	}
	return r.holders[loc.HolderID]
}

// plannedMove is one validated ledger mutation for a product.
type plannedMove struct {
	productID string
	quantity  int64
	source    Location
	dest      *Location
}

// Transfer moves every line from Source to Destination, all or nothing.
func (e *Engine) Transfer(ctx context.Context, order TransferOrder) error {
	if !order.IssueOnly && order.Source == order.Destination {
		return apperror.NewValidation("source and destination are the same ledger")
	}
	if order.IssueOnly && order.Destination.IsCentral() {
		return apperror.NewValidation("central warehouse cannot be an issue-only destination")
	}

	plan, err := aggregate(order.Lines)
	if err != nil {
		return err
	}

	holders := []string{order.Source.HolderID}
	if !order.IssueOnly {
		holders = append(holders, order.Destination.HolderID)
	}

	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		moves := make([]plannedMove, 0, len(plan))
		for _, d := range plan {
			rows, err := e.lockRows(ctx, d.productID, holders)
			if err != nil {
				return err
			}
			if avail := rows.available(order.Source); avail < d.quantity {
				return insufficient(d, avail, order.Source)
			}
			m := plannedMove{productID: d.productID, quantity: d.quantity, source: order.Source}
			if !order.IssueOnly {
				dest := order.Destination
				m.dest = &dest
			}
			moves = append(moves, m)
		}

		if err := e.applyMoves(ctx, moves); err != nil {
			return err
		}

		now := e.now()
		movements := make([]Movement, 0, 2*len(order.Lines))
		for _, line := range order.Lines {
			movements = append(movements, e.movement(TypeTransfer, line.ProductID, order.Source, -line.Quantity, order.Link, order.ActorID, order.Reference, now))
			if !order.IssueOnly {
				movements = append(movements, e.movement(TypeTransfer, line.ProductID, order.Destination, line.Quantity, order.Link, order.ActorID, order.Reference, now))
			}
		}
		if err := e.repo.AppendMovements(ctx, movements); err != nil {
			return fmt.Errorf("append transfer movements: %w", err)
		}

		logger.Info(ctx, "inventory transferred",
			"source", order.Source.String(),
			"destination", order.Destination.String(),
			"issue_only", order.IssueOnly,
			"products", len(plan),
			"movements", len(movements),
		)
		return nil
	})
}

// ReduceForSale decrements stock for a sale, all or nothing.
//
// For each product an admin's own ledger is used when it holds the full
// quantity; otherwise the central warehouse must cover it. A line is never
// split between the two.
func (e *Engine) ReduceForSale(ctx context.Context, actor appctx.Actor, saleID string, lines []Line) error {
	plan, err := aggregate(lines)
	if err != nil {
		return err
	}

	var holders []string
	if actor.Role.HoldsInventory() {
		holders = []string{actor.ID}
	}

	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		moves := make([]plannedMove, 0, len(plan))
		sources := make(map[string]Location, len(plan))
		for _, d := range plan {
			rows, err := e.lockRows(ctx, d.productID, holders)
			if err != nil {
				return err
			}

			source := CentralWarehouse()
			if actor.Role.HoldsInventory() && rows.available(HolderLedger(actor.ID)) >= d.quantity {
				source = HolderLedger(actor.ID)
			}
			if avail := rows.available(source); avail < d.quantity {
				appErr := insufficient(d, avail, source)
				if actor.Role.HoldsInventory() {
					appErr.WithDetail("holder_available", rows.available(HolderLedger(actor.ID)))
				}
				return appErr
			}

			sources[d.productID] = source
			moves = append(moves, plannedMove{productID: d.productID, quantity: d.quantity, source: source})
		}

		if err := e.applyMoves(ctx, moves); err != nil {
			return err
		}

		now := e.now()
		link := Link{SaleID: saleID}
		reference := fmt.Sprintf("sale %s", saleID)
		movements := make([]Movement, 0, len(lines))
		for _, line := range lines {
			movements = append(movements, e.movement(TypeSale, line.ProductID, sources[line.ProductID], -line.Quantity, link, actor.ID, reference, now))
		}
		if err := e.repo.AppendMovements(ctx, movements); err != nil {
			return fmt.Errorf("append sale movements: %w", err)
		}

		logger.Info(ctx, "inventory reduced for sale", "sale_id", saleID, "movements", len(movements))
		return nil
	})
}

// ReturnToCentral moves quantity from a holder ledger back to central stock.
// Availability is checked under lock; the single log row is the central inflow.
func (e *Engine) ReturnToCentral(ctx context.Context, order ReturnOrder) error {
	if order.HolderID == "" {
		return apperror.NewValidation("holder_id is required")
	}
	plan, err := aggregate([]Line{{ProductID: order.ProductID, Quantity: order.Quantity}})
	if err != nil {
		return err
	}
	d := plan[0]
	source := HolderLedger(order.HolderID)

	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		rows, err := e.lockRows(ctx, d.productID, []string{order.HolderID})
		if err != nil {
			return err
		}
		if avail := rows.available(source); avail < d.quantity {
			return insufficient(d, avail, source)
		}

		central := CentralWarehouse()
		if err := e.applyMoves(ctx, []plannedMove{{productID: d.productID, quantity: d.quantity, source: source, dest: &central}}); err != nil {
			return err
		}

		link := Link{StockReturnID: order.StockReturnID}
		mv := e.movement(TypeReturn, d.productID, central, d.quantity, link, order.ActorID, order.Reference, e.now())
		if err := e.repo.AppendMovements(ctx, []Movement{mv}); err != nil {
			return fmt.Errorf("append return movement: %w", err)
		}

		logger.Info(ctx, "inventory returned to central",
			"holder_id", order.HolderID,
			"product_id", d.productID,
			"quantity", d.quantity,
		)
		return nil
	})
}

// Adjust applies a signed correction to central stock and logs it.
func (e *Engine) Adjust(ctx context.Context, order AdjustOrder) error {
	if order.ProductID == "" {
		return apperror.NewValidation("product_id is required")
	}
	if order.Delta == 0 {
		return apperror.NewValidation("delta must not be zero")
	}
	if order.Type != TypePurchase && order.Type != TypeAdjustment {
		return apperror.NewValidation(fmt.Sprintf("unsupported adjustment type %q", order.Type))
	}
	if order.Type == TypePurchase && order.Delta < 0 {
		return apperror.NewValidation("purchase must increase stock")
	}

	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		product, err := e.repo.LockProduct(ctx, order.ProductID)
		if err != nil {
			return err
		}
		if order.Delta < 0 && product.Quantity < -order.Delta {
			return apperror.NewInsufficientStock(order.ProductID, -order.Delta, product.Quantity)
		}
		if _, err := e.repo.AdjustProductQuantity(ctx, order.ProductID, order.Delta); err != nil {
			return fmt.Errorf("adjust central quantity: %w", err)
		}
		mv := e.movement(order.Type, order.ProductID, CentralWarehouse(), order.Delta, Link{}, order.ActorID, order.Reference, e.now())
		if err := e.repo.AppendMovements(ctx, []Movement{mv}); err != nil {
			return fmt.Errorf("append adjustment movement: %w", err)
		}
		logger.Info(ctx, "central stock adjusted", "product_id", order.ProductID, "delta", order.Delta, "type", order.Type)
		return nil
	})
}

// lockRows takes the locks for one product in the global order.
func (e *Engine) lockRows(ctx context.Context, productID string, holderIDs []string) (lockedRows, error) {
	product, err := e.repo.LockProduct(ctx, productID)
	if err != nil {
		return lockedRows{}, err
	}

	ids := make([]string, 0, len(holderIDs))
	for _, h := range holderIDs {
		if h != "" {
			ids = append(ids, h)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	rows := lockedRows{product: product, holders: make(map[string]int64, len(ids))}
	for _, holderID := range ids {
		qty, _, err := e.repo.LockHolderEntry(ctx, holderID, productID)
		if err != nil {
			return lockedRows{}, fmt.Errorf("lock holder %s product %s: %w", holderID, productID, err)
		}
		rows.holders[holderID] = qty
	}
	return rows, nil
}

func (e *Engine) applyMoves(ctx context.Context, moves []plannedMove) error {
	for _, m := range moves {
		if err := e.adjust(ctx, m.source, m.productID, -m.quantity); err != nil {
			return err
		}
		if m.dest != nil {
			if err := e.adjust(ctx, *m.dest, m.productID, m.quantity); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) adjust(ctx context.Context, loc Location, productID string, delta int64) error {
	if loc.IsCentral() {
		if _, err := e.repo.AdjustProductQuantity(ctx, productID, delta); err != nil {
			return fmt.Errorf("adjust central quantity of %s: %w", productID, err)
		}
		return nil
	}
	if _, err := e.repo.AdjustHolderQuantity(ctx, loc.HolderID, productID, delta); err != nil {
		return fmt.Errorf("adjust holder %s quantity of %s: %w", loc.HolderID, productID, err)
	}
	return nil
}

func (e *Engine) movement(typ TransactionType, productID string, loc Location, qty int64, link Link, actorID, reference string, at time.Time) Movement {
	return Movement{
		ID:             id.NewString(),
		ProductID:      productID,
		HolderID:       loc.HolderID,
		Type:           typ,
		Quantity:       qty,
		Reference:      reference,
		StockRequestID: link.StockRequestID,
		SaleID:         link.SaleID,
		StockReturnID:  link.StockReturnID,
		ActorID:        actorID,
		CreatedAt:      at,
	}
}

// aggregate validates lines and merges them per product in ascending id order.
func aggregate(lines []Line) ([]demand, error) {
	if len(lines) == 0 {
		return nil, apperror.NewValidation("at least one item is required")
	}

	index := make(map[string]int, len(lines))
	plan := make([]demand, 0, len(lines))
	for i, line := range lines {
		if line.ProductID == "" {
			return nil, apperror.NewItemValidation(i, line.Label, "has no product id")
		}
		if line.Quantity <= 0 {
			return nil, apperror.NewItemValidation(i, line.Label, "quantity must be positive")
		}
		if at, ok := index[line.ProductID]; ok {
			plan[at].quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(plan)
		plan = append(plan, demand{productID: line.ProductID, quantity: line.Quantity, firstLine: i, label: line.Label})
	}

	slices.SortFunc(plan, func(a, b demand) int {
		return strings.Compare(a.productID, b.productID)
	})
	return plan, nil
}

func insufficient(d demand, available int64, source Location) *apperror.AppError {
	return apperror.NewInsufficientStock(d.productID, d.quantity, available).
		WithDetail("source", source.String()).
		WithDetail("item_index", d.firstLine)
}
