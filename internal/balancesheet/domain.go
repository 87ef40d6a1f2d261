package balancesheet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind selects the balance-sheet side a line item belongs to.
type Kind string

const (
	KindAsset     Kind = "ASSET"
	KindCapital   Kind = "CAPITAL"
	KindLiability Kind = "LIABILITY"
)

// Well-known line types written by the ledger workflows.
const (
	LineCash               = "Cash"
	LineAccountsReceivable = "Accounts Receivable"
	LineEquityCapital      = "Equity Capital"
)

// Entry is a branch-scoped balance-sheet delta. Value is the delta of this
// event; UpdatedBalance is the running total for (branch, kind, line type)
// after applying it. The running total is maintained by an atomic
// upsert-increment in the same transaction as the insert, never derived
// from "the last row".
type Entry struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	Kind           Kind
	Name           string
	LineType       string
	Value          decimal.Decimal
	UpdatedBalance decimal.Decimal
	Status         string
	Description    string
	CreatedAt      time.Time
}

// Snapshot holds per-kind running totals for one branch at a point in time.
type Snapshot struct {
	BranchID    uuid.UUID
	AsOf        time.Time
	Assets      decimal.Decimal
	Capital     decimal.Decimal
	Liabilities decimal.Decimal
}

// AnnualBalance is the once-per-branch-per-year aggregation result. Rows
// are never mutated after creation.
type AnnualBalance struct {
	ID                      uuid.UUID
	BranchID                uuid.UUID
	AccountingYear          string
	AssetsOpeningBalance    decimal.Decimal
	AssetsClosingBalance    decimal.Decimal
	CapitalOpeningBalance   decimal.Decimal
	CapitalClosingBalance   decimal.Decimal
	LiabilityOpeningBalance decimal.Decimal
	LiabilityClosingBalance decimal.Decimal
	CreatedAt               time.Time
}
