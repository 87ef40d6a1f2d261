package investments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentStatus enumerates investment lifecycle states.
type InvestmentStatus string

const (
	StatusActive  InvestmentStatus = "ACTIVE"
	StatusMatured InvestmentStatus = "MATURED"
)

// Investment is principal the bank placed with a counterparty account.
// FromAccount is the bank operating account the principal left; ToAccount
// is the counterparty account holding it until maturity.
type Investment struct {
	ID            uuid.UUID
	FromAccount   uuid.UUID
	ToAccount     uuid.UUID
	Type          string
	Principal     decimal.Decimal
	InterestRate  decimal.Decimal
	Status        InvestmentStatus
	TransactionID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ClosedAt      *time.Time
}

// Crediting records a maturity payout: principal plus the interest earned.
type Crediting struct {
	ID             uuid.UUID
	InvestmentID   uuid.UUID
	TransactionID  uuid.UUID
	Amount         decimal.Decimal
	InterestEarned decimal.Decimal
	Status         string
	CreatedAt      time.Time
}

// OpenInput describes a new investment placement.
type OpenInput struct {
	AccountID    uuid.UUID
	Amount       decimal.Decimal
	Type         string
	InterestRate decimal.Decimal
	InitiatedBy  uuid.UUID
	Description  string
}

// CreditInput describes a maturity payout request.
type CreditInput struct {
	InvestmentID uuid.UUID
	Interest     decimal.Decimal
	InitiatedBy  uuid.UUID
}
