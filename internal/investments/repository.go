package investments

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

var (
	// ErrNotFound indicates the investment does not exist.
	ErrNotFound = errors.New("investments: not found")
	// ErrNotActive indicates a payout against a matured investment.
	ErrNotActive = errors.New("investments: investment is not active")
	// ErrNegativeInterest indicates a payout with negative interest.
	ErrNegativeInterest = errors.New("investments: interest must not be negative")
)

// Repository encapsulates investment persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvestment(ctx context.Context, id uuid.UUID) (Investment, error)
	ListInvestments(ctx context.Context, status InvestmentStatus, limit int) ([]Investment, error)
	ListCreditings(ctx context.Context, investmentID uuid.UUID) ([]Crediting, error)
}

// TxRepository extends the ledger transaction scope with investment rows.
type TxRepository interface {
	ledger.TxRepository
	InsertInvestment(ctx context.Context, inv Investment) (Investment, error)
	LockInvestment(ctx context.Context, id uuid.UUID) (Investment, error)
	UpdateInvestment(ctx context.Context, inv Investment) error
	InsertCrediting(ctx context.Context, c Crediting) (Crediting, error)
}
