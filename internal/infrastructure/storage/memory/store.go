// Package memory is an in-process implementation of every repository.
//
// A transaction holds the store's write lock for its whole duration and
// restores a snapshot on error or panic, so transactions are fully serialized. That is
// stronger than row locking and keeps the engine's all-or-nothing contract.
// It backs the development server when no database is configured and the
// domain tests.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"voltstock/internal/core/tx"
	"voltstock/internal/domain/audit"
	"voltstock/internal/domain/directory"
	"voltstock/internal/domain/ledger"
	"voltstock/internal/domain/sale"
	"voltstock/internal/domain/stockrequest"
	"voltstock/internal/domain/stockreturn"
)

var errNoTx = errors.New("memory: locking read requires a transaction")

type holderKey struct {
	holderID  string
	productID string
}

type state struct {
	products  map[string]ledger.Product
	holders   map[holderKey]ledger.HolderEntry
	movements []ledger.Movement
	requests  map[string]*stockrequest.StockRequest
	sales     map[string]*sale.Sale
	returns   map[string]*stockreturn.StockReturn
	users     map[string]directory.Holder
	audit     []audit.Entry
}

func newState() *state {
	return &state{
		products: make(map[string]ledger.Product),
		holders:  make(map[holderKey]ledger.HolderEntry),
		requests: make(map[string]*stockrequest.StockRequest),
		sales:    make(map[string]*sale.Sale),
		returns:  make(map[string]*stockreturn.StockReturn),
		users:    make(map[string]directory.Holder),
	}
}

func (st *state) clone() *state {
	c := &state{
		products:  make(map[string]ledger.Product, len(st.products)),
		holders:   make(map[holderKey]ledger.HolderEntry, len(st.holders)),
		movements: slices.Clone(st.movements),
		requests:  make(map[string]*stockrequest.StockRequest, len(st.requests)),
		sales:     make(map[string]*sale.Sale, len(st.sales)),
		returns:   make(map[string]*stockreturn.StockReturn, len(st.returns)),
		users:     make(map[string]directory.Holder, len(st.users)),
		audit:     slices.Clone(st.audit),
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.holders {
		c.holders[k] = v
	}
	for k, v := range st.requests {
		c.requests[k] = cloneRequest(v)
	}
	for k, v := range st.sales {
		c.sales[k] = cloneSale(v)
	}
	for k, v := range st.returns {
		c.returns[k] = cloneReturn(v)
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	return c
}

// Store holds all in-memory state.
type Store struct {
	mu   sync.RWMutex
	data *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

var _ tx.Manager = (*Store)(nil)

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Restored on error and on panic.
	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.data)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

func (s *Store) update(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) locked(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		return errNoTx
	}
	return fn(s.data)
}

// --- seeding and inspection ---

// SeedProduct inserts or replaces a product.
func (s *Store) SeedProduct(p ledger.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = p
}

// SeedHolder inserts or replaces a user.
func (s *Store) SeedHolder(h directory.Holder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[h.ID] = h
}

// SeedHolderStock sets a holder ledger row; zero removes it.
func (s *Store) SeedHolderStock(holderID, productID string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := holderKey{holderID, productID}
	if qty == 0 {
		delete(s.data.holders, key)
		return
	}
	s.data.holders[key] = ledger.HolderEntry{HolderID: holderID, ProductID: productID, Quantity: qty}
}

// Movements returns a copy of the whole log in append order.
func (s *Store) Movements() []ledger.Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.movements)
}

// AuditEntries returns a copy of the audit trail.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.audit)
}

// HolderRowCount returns how many holder ledger rows exist.
func (s *Store) HolderRowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.holders)
}

// Repositories bundles every repository backed by one store.
type Repositories struct {
	Ledger        *LedgerRepo
	StockRequests *StockRequestRepo
	Sales         *SaleRepo
	StockReturns  *StockReturnRepo
	Directory     *DirectoryRepo
	Sequence      *SequenceGenerator
	Audit         *AuditRecorder
}

// Repositories returns repositories sharing s.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Ledger:        &LedgerRepo{s},
		StockRequests: &StockRequestRepo{s},
		Sales:         &SaleRepo{s},
		StockReturns:  &StockReturnRepo{s},
		Directory:     &DirectoryRepo{s},
		Sequence:      &SequenceGenerator{s},
		Audit:         &AuditRecorder{s},
	}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
