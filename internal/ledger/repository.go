package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocket-bank/pocket-bank/internal/audit"
	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
)

// Repository encapsulates ledger persistence. All mutation happens through
// WithTx so multi-row effects commit or roll back as a unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	ListTransactions(ctx context.Context, branchID uuid.UUID, limit int) ([]Transaction, error)
}

// TxRepository exposes the operations available inside a ledger transaction.
// Sibling workflow packages (loans, investments, income) embed it in their
// own transaction-scoped interfaces so every balance mutation flows through
// the same gate.
type TxRepository interface {
	GetEntity(ctx context.Context, id uuid.UUID) (Entity, error)
	InsertAccount(ctx context.Context, a Account) (Account, error)
	// LockAccount loads the account with a row lock held until commit.
	LockAccount(ctx context.Context, id uuid.UUID) (Account, error)
	// DebitAccount decrements the balance with an atomic conditional update:
	// when floor is non-nil the debit only applies if the remaining balance
	// stays at or above it, closing the stale-sufficiency-check race.
	DebitAccount(ctx context.Context, id uuid.UUID, amount decimal.Decimal, floor *decimal.Decimal) (decimal.Decimal, error)
	CreditAccount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	SetTransactionStatus(ctx context.Context, id uuid.UUID, status TransactionStatus) error
	AppendBalanceEntry(ctx context.Context, e balancesheet.Entry) (balancesheet.Entry, error)
	RecordAudit(ctx context.Context, e audit.Entry) error
}
