package loans

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus enumerates loan lifecycle states.
type LoanStatus string

const (
	StatusActive  LoanStatus = "ACTIVE"
	StatusSettled LoanStatus = "SETTLED"
)

// PaymentFrequency determines how many interest periods a year has.
type PaymentFrequency string

const (
	FrequencyMonthly   PaymentFrequency = "MONTHLY"
	FrequencyQuarterly PaymentFrequency = "QUARTERLY"
	FrequencyAnnually  PaymentFrequency = "ANNUALLY"
)

// PeriodsPerYear returns the number of payment periods in a year, or 0 for
// an unknown frequency.
func (f PaymentFrequency) PeriodsPerYear() int64 {
	switch f {
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	case FrequencyAnnually:
		return 1
	}
	return 0
}

// Loan tracks a disbursed principal and its outstanding balance. FromAccount
// is the bank operating account the principal left; ToAccount is the
// borrower's account it landed in.
type Loan struct {
	ID            uuid.UUID
	FromAccount   uuid.UUID
	ToAccount     uuid.UUID
	Type          string
	InterestRate  decimal.Decimal
	TermMonths    int
	Frequency     PaymentFrequency
	LateFee       decimal.Decimal
	Principal     decimal.Decimal
	Outstanding   decimal.Decimal
	FullyPaid     bool
	Status        LoanStatus
	TransactionID *uuid.UUID
	DisbursedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

// LoanPayment is one recorded installment, split into interest and
// principal portions.
type LoanPayment struct {
	ID            uuid.UUID
	LoanID        uuid.UUID
	PaidBy        uuid.UUID
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	InterestPaid  decimal.Decimal
	PrincipalPaid decimal.Decimal
	Status        string
	CreatedAt     time.Time
}

// DisburseInput describes a loan disbursement request.
type DisburseInput struct {
	AccountID    uuid.UUID
	Amount       decimal.Decimal
	Type         string
	InterestRate decimal.Decimal
	TermMonths   int
	Frequency    PaymentFrequency
	LateFee      decimal.Decimal
	InitiatedBy  uuid.UUID
	Description  string
}

// PaymentInput describes an installment payment against a loan.
type PaymentInput struct {
	LoanID      uuid.UUID
	Amount      decimal.Decimal
	InitiatedBy uuid.UUID
}
