package loans

import (
	"context"

	"github.com/google/uuid"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
)

// Repository encapsulates loan persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLoan(ctx context.Context, id uuid.UUID) (Loan, error)
	ListLoans(ctx context.Context, branchID uuid.UUID, limit int) ([]Loan, error)
	ListPayments(ctx context.Context, loanID uuid.UUID) ([]LoanPayment, error)
}

// TxRepository extends the ledger transaction scope with loan rows, so
// disbursements and payments commit atomically with their money movement.
type TxRepository interface {
	ledger.TxRepository
	InsertLoan(ctx context.Context, l Loan) (Loan, error)
	LockLoan(ctx context.Context, id uuid.UUID) (Loan, error)
	UpdateLoan(ctx context.Context, l Loan) error
	InsertPayment(ctx context.Context, p LoanPayment) (LoanPayment, error)
}
