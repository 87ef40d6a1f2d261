package loans_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/ledger/ledgertest"
	"github.com/pocket-bank/pocket-bank/internal/loans"
)

// memoryRepository layers loan state on the shared in-memory ledger store.
// Loan maps are snapshotted alongside the ledger state so a failed workflow
// rolls everything back.
type memoryRepository struct {
	store    *ledgertest.Store
	loans    map[uuid.UUID]loans.Loan
	payments []loans.LoanPayment
}

func newMemoryRepository(store *ledgertest.Store) *memoryRepository {
	return &memoryRepository{store: store, loans: map[uuid.UUID]loans.Loan{}}
}

func (m *memoryRepository) WithTx(ctx context.Context, fn func(context.Context, loans.TxRepository) error) error {
	snapLoans := make(map[uuid.UUID]loans.Loan, len(m.loans))
	for k, v := range m.loans {
		snapLoans[k] = v
	}
	snapPayments := append([]loans.LoanPayment(nil), m.payments...)

	err := m.store.WithTx(ctx, func(ctx context.Context, ltx ledger.TxRepository) error {
		return fn(ctx, &memoryTx{TxRepository: ltx, repo: m})
	})
	if err != nil {
		m.loans = snapLoans
		m.payments = snapPayments
	}
	return err
}

func (m *memoryRepository) GetLoan(ctx context.Context, id uuid.UUID) (loans.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return loans.Loan{}, loans.ErrNotFound
	}
	return l, nil
}

func (m *memoryRepository) ListLoans(ctx context.Context, branchID uuid.UUID, limit int) ([]loans.Loan, error) {
	var out []loans.Loan
	for _, l := range m.loans {
		out = append(out, l)
	}
	return out, nil
}

func (m *memoryRepository) ListPayments(ctx context.Context, loanID uuid.UUID) ([]loans.LoanPayment, error) {
	var out []loans.LoanPayment
	for _, p := range m.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryTx struct {
	ledger.TxRepository
	repo *memoryRepository
}

func (t *memoryTx) InsertLoan(ctx context.Context, l loans.Loan) (loans.Loan, error) {
	t.repo.loans[l.ID] = l
	return l, nil
}

func (t *memoryTx) LockLoan(ctx context.Context, id uuid.UUID) (loans.Loan, error) {
	l, ok := t.repo.loans[id]
	if !ok {
		return loans.Loan{}, loans.ErrNotFound
	}
	return l, nil
}

func (t *memoryTx) UpdateLoan(ctx context.Context, l loans.Loan) error {
	if _, ok := t.repo.loans[l.ID]; !ok {
		return loans.ErrNotFound
	}
	t.repo.loans[l.ID] = l
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p loans.LoanPayment) (loans.LoanPayment, error) {
	t.repo.payments = append(t.repo.payments, p)
	return p, nil
}
