package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction states whether both legs of a transaction are ledger-tracked
// accounts (internal) or one leg lives outside the system (external).
type Direction string

const (
	DirectionInternal Direction = "INTERNAL"
	DirectionExternal Direction = "EXTERNAL"
)

// TransactionStatus enumerates committed transaction states. A transaction
// only ever exists in persistent storage as COMMITTED or REVERSED; pending
// state lives on the stack during validation and is never written.
type TransactionStatus string

const (
	TxnStatusCommitted TransactionStatus = "COMMITTED"
	TxnStatusReversed  TransactionStatus = "REVERSED"
)

// TransactionType mirrors the bank's transaction type reference data.
type TransactionType string

const (
	TypeTransfer          TransactionType = "Transfer"
	TypeDeposit           TransactionType = "Deposit"
	TypeWithdrawal        TransactionType = "Withdrawal"
	TypeCharge            TransactionType = "Charge"
	TypeRefund            TransactionType = "Refund"
	TypeFee               TransactionType = "Fee"
	TypeAccountCreation   TransactionType = "Account Creation"
	TypeLoanDisbursement  TransactionType = "Loan Disbursement"
	TypeLoanPayment       TransactionType = "Loan Payment"
	TypeIncome            TransactionType = "Income"
	TypeInterestCrediting TransactionType = "Interest Crediting"
	TypeAdjustment        TransactionType = "Adjustment"
)

// SystemOriginated reports whether the type is produced by an internal
// workflow rather than a customer request. System types skip the
// individual-initiator ownership check.
func (t TransactionType) SystemOriginated() bool {
	switch t {
	case TypeAccountCreation, TypeLoanDisbursement, TypeIncome, TypeInterestCrediting, TypeAdjustment:
		return true
	}
	return false
}

// EntityKind classifies the initiating entity.
type EntityKind string

const (
	EntityIndividual   EntityKind = "INDIVIDUAL"
	EntityOrganization EntityKind = "ORGANIZATION"
	EntitySystem       EntityKind = "SYSTEM"
)

// Entity is the minimal view of the entity directory the ledger needs:
// identity, kind for authorization, and home branch.
type Entity struct {
	ID       uuid.UUID
	Name     string
	Kind     EntityKind
	BranchID uuid.UUID
}

// AccountStatus enumerates account states.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

// Account is a ledger-tracked balance holder.
type Account struct {
	ID          uuid.UUID
	Number      string
	Name        string
	OwnerID     uuid.UUID
	Type        string
	BranchID    uuid.UUID
	Balance     decimal.Decimal
	Status      AccountStatus
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// Transaction is an immutable money-movement record. Corrections happen via
// new reversing transactions, never in-place edits.
type Transaction struct {
	ID               uuid.UUID
	SenderID         *uuid.UUID
	RecipientID      *uuid.UUID
	Type             TransactionType
	Direction        Direction
	Amount           decimal.Decimal
	SenderBalance    *decimal.Decimal
	RecipientBalance *decimal.Decimal
	Status           TransactionStatus
	InitiatedBy      uuid.UUID
	BranchID         uuid.UUID
	ExternalRef      string
	Description      string
	CreatedAt        time.Time
}

// SubmitInput describes a money-movement request before validation.
type SubmitInput struct {
	SenderID    *uuid.UUID
	RecipientID *uuid.UUID
	Type        TransactionType
	Direction   Direction
	Amount      decimal.Decimal
	InitiatedBy uuid.UUID
	BranchID    uuid.UUID
	ExternalRef string
	Description string

	// floorExempt lifts the reserve-floor check for system reconciliation
	// paths (reversals). Not settable from outside the package.
	floorExempt bool
}

// CreateAccountInput describes a new account request.
type CreateAccountInput struct {
	OwnerID        uuid.UUID
	Type           string
	BranchID       uuid.UUID
	Name           string
	Description    string
	OpeningBalance decimal.Decimal
}
