// Package ledgertest provides an in-memory ledger repository for tests.
// WithTx snapshots all state before running fn and restores the snapshot
// when fn fails, so tests exercise the same all-or-nothing behavior the
// database provides. The mutex serializes transactions.
package ledgertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

// Store is an in-memory ledger.Repository. Fields are exported so tests can
// seed and inspect state directly.
type Store struct {
	mu             sync.Mutex
	Entities       map[uuid.UUID]ledger.Entity
	Accounts       map[uuid.UUID]ledger.Account
	Transactions   map[uuid.UUID]ledger.Transaction
	BalanceEntries []balancesheet.Entry
	Totals         map[string]decimal.Decimal
	Audits         []audit.Entry
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		Entities:     map[uuid.UUID]ledger.Entity{},
		Accounts:     map[uuid.UUID]ledger.Account{},
		Transactions: map[uuid.UUID]ledger.Transaction{},
		Totals:       map[string]decimal.Decimal{},
	}
}

// SeedEntity registers an entity.
func (s *Store) SeedEntity(e ledger.Entity) {
	s.Entities[e.ID] = e
}

// SeedAccount registers an account, defaulting status to ACTIVE.
func (s *Store) SeedAccount(a ledger.Account) {
	if a.Status == "" {
		a.Status = ledger.AccountActive
	}
	s.Accounts[a.ID] = a
}

func (s *Store) snapshot() *Store {
	snap := NewStore()
	for k, v := range s.Entities {
		snap.Entities[k] = v
	}
	for k, v := range s.Accounts {
		snap.Accounts[k] = v
	}
	for k, v := range s.Transactions {
		snap.Transactions[k] = v
	}
	snap.BalanceEntries = append([]balancesheet.Entry(nil), s.BalanceEntries...)
	for k, v := range s.Totals {
		snap.Totals[k] = v
	}
	snap.Audits = append([]audit.Entry(nil), s.Audits...)
	return snap
}

func (s *Store) restore(snap *Store) {
	s.Entities = snap.Entities
	s.Accounts = snap.Accounts
	s.Transactions = snap.Transactions
	s.BalanceEntries = snap.BalanceEntries
	s.Totals = snap.Totals
	s.Audits = snap.Audits
}

// WithTx runs fn against a transactional view, rolling everything back when
// fn returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(ctx, &Tx{store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// GetAccount implements ledger.Repository.
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return a, nil
}

// GetTransaction implements ledger.Repository.
func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	return t, nil
}

// ListTransactions implements ledger.Repository.
func (s *Store) ListTransactions(ctx context.Context, branchID uuid.UUID, limit int) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Transaction
	for _, t := range s.Transactions {
		if t.BranchID == branchID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Tx is the transactional view of a Store. It implements
// ledger.TxRepository and is safe to embed in wider transaction fakes.
type Tx struct {
	store *Store
}

func (t *Tx) GetEntity(ctx context.Context, id uuid.UUID) (ledger.Entity, error) {
	e, ok := t.store.Entities[id]
	if !ok {
		return ledger.Entity{}, ledger.ErrNotFound
	}
	return e, nil
}

func (t *Tx) InsertAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	for _, existing := range t.store.Accounts {
		if existing.Number == a.Number {
			return ledger.Account{}, ledger.ErrDuplicate
		}
	}
	t.store.Accounts[a.ID] = a
	return a, nil
}

func (t *Tx) LockAccount(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	a, ok := t.store.Accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return a, nil
}

func (t *Tx) DebitAccount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, floor *decimal.Decimal) (decimal.Decimal, error) {
	a, ok := t.store.Accounts[id]
	if !ok {
		return decimal.Zero, ledger.ErrNotFound
	}
	remaining := a.Balance.Sub(amount)
	if floor != nil && remaining.LessThan(*floor) {
		return decimal.Zero, ledger.Violation(ledger.RuleInsufficientFunds, "insufficient funds")
	}
	a.Balance = remaining
	t.store.Accounts[id] = a
	return remaining, nil
}

func (t *Tx) CreditAccount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	a, ok := t.store.Accounts[id]
	if !ok {
		return decimal.Zero, ledger.ErrNotFound
	}
	a.Balance = a.Balance.Add(amount)
	t.store.Accounts[id] = a
	return a.Balance, nil
}

func (t *Tx) InsertTransaction(ctx context.Context, txn ledger.Transaction) (ledger.Transaction, error) {
	if _, exists := t.store.Transactions[txn.ID]; exists {
		return ledger.Transaction{}, ledger.ErrDuplicate
	}
	t.store.Transactions[txn.ID] = txn
	return txn, nil
}

func (t *Tx) LockTransaction(ctx context.Context, id uuid.UUID) (ledger.Transaction, error) {
	txn, ok := t.store.Transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrNotFound
	}
	return txn, nil
}

func (t *Tx) SetTransactionStatus(ctx context.Context, id uuid.UUID, status ledger.TransactionStatus) error {
	txn, ok := t.store.Transactions[id]
	if !ok {
		return ledger.ErrNotFound
	}
	txn.Status = status
	t.store.Transactions[id] = txn
	return nil
}

func (t *Tx) AppendBalanceEntry(ctx context.Context, e balancesheet.Entry) (balancesheet.Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	key := TotalKey(e.BranchID, e.Kind, e.LineType)
	total := t.store.Totals[key].Add(e.Value)
	t.store.Totals[key] = total
	e.UpdatedBalance = total
	t.store.BalanceEntries = append(t.store.BalanceEntries, e)
	return e, nil
}

func (t *Tx) RecordAudit(ctx context.Context, e audit.Entry) error {
	t.store.Audits = append(t.store.Audits, e)
	return nil
}

// TotalKey is the Totals map key for a (branch, kind, line type) counter.
func TotalKey(branchID uuid.UUID, kind balancesheet.Kind, lineType string) string {
	return fmt.Sprintf("%s|%s|%s", branchID, kind, lineType)
}
