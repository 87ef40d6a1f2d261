package investments_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/pocket-bank/pocket-bank/internal/investments"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/ledger/ledgertest"
)

// memoryRepository layers investment state on the shared in-memory ledger
// store, snapshotting its own maps so failed workflows roll back fully.
type memoryRepository struct {
	store       *ledgertest.Store
	investments map[uuid.UUID]investments.Investment
	creditings  []investments.Crediting
}

func newMemoryRepository(store *ledgertest.Store) *memoryRepository {
	return &memoryRepository{store: store, investments: map[uuid.UUID]investments.Investment{}}
}

func (m *memoryRepository) WithTx(ctx context.Context, fn func(context.Context, investments.TxRepository) error) error {
	snapInv := make(map[uuid.UUID]investments.Investment, len(m.investments))
	for k, v := range m.investments {
		snapInv[k] = v
	}
	snapCred := append([]investments.Crediting(nil), m.creditings...)

	err := m.store.WithTx(ctx, func(ctx context.Context, ltx ledger.TxRepository) error {
		return fn(ctx, &memoryTx{TxRepository: ltx, repo: m})
	})
	if err != nil {
		m.investments = snapInv
		m.creditings = snapCred
	}
	return err
}

func (m *memoryRepository) GetInvestment(ctx context.Context, id uuid.UUID) (investments.Investment, error) {
	inv, ok := m.investments[id]
	if !ok {
		return investments.Investment{}, investments.ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepository) ListInvestments(ctx context.Context, status investments.InvestmentStatus, limit int) ([]investments.Investment, error) {
	var out []investments.Investment
	for _, inv := range m.investments {
		if status == "" || inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memoryRepository) ListCreditings(ctx context.Context, investmentID uuid.UUID) ([]investments.Crediting, error) {
	var out []investments.Crediting
	for _, c := range m.creditings {
		if c.InvestmentID == investmentID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memoryTx struct {
	ledger.TxRepository
	repo *memoryRepository
}

func (t *memoryTx) InsertInvestment(ctx context.Context, inv investments.Investment) (investments.Investment, error) {
	t.repo.investments[inv.ID] = inv
	return inv, nil
}

func (t *memoryTx) LockInvestment(ctx context.Context, id uuid.UUID) (investments.Investment, error) {
	inv, ok := t.repo.investments[id]
	if !ok {
		return investments.Investment{}, investments.ErrNotFound
	}
	return inv, nil
}

func (t *memoryTx) UpdateInvestment(ctx context.Context, inv investments.Investment) error {
	if _, ok := t.repo.investments[inv.ID]; !ok {
		return investments.ErrNotFound
	}
	t.repo.investments[inv.ID] = inv
	return nil
}

func (t *memoryTx) InsertCrediting(ctx context.Context, c investments.Crediting) (investments.Crediting, error) {
	t.repo.creditings = append(t.repo.creditings, c)
	return c, nil
}
