package investments_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/investments"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/ledger/ledgertest"
)

var testNow = time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store    *ledgertest.Store
	repo     *memoryRepository
	svc      *investments.Service
	branch   uuid.UUID
	bank     ledger.Entity
	bankAc   ledger.Account
	fund     ledger.Entity
	fundAc   ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  ledgertest.NewStore(),
		branch: uuid.New(),
	}
	f.repo = newMemoryRepository(f.store)

	f.bank = ledger.Entity{ID: uuid.New(), Name: "Pocket Bank", Kind: ledger.EntitySystem, BranchID: f.branch}
	f.fund = ledger.Entity{ID: uuid.New(), Name: "Harbor Money Market Fund", Kind: ledger.EntityOrganization, BranchID: f.branch}
	f.store.SeedEntity(f.bank)
	f.store.SeedEntity(f.fund)

	f.bankAc = ledger.Account{ID: uuid.New(), Number: "9000000000001", Name: f.bank.Name, OwnerID: f.bank.ID, Type: "Operating", BranchID: f.branch, Balance: decimal.NewFromInt(50000)}
	f.fundAc = ledger.Account{ID: uuid.New(), Number: "8000000000001", Name: f.fund.Name, OwnerID: f.fund.ID, Type: "Counterparty", BranchID: f.branch, Balance: decimal.NewFromInt(100000)}
	f.store.SeedAccount(f.bankAc)
	f.store.SeedAccount(f.fundAc)

	f.svc = investments.NewService(f.repo, &f.bankAc.ID, decimal.NewFromInt(80))
	f.svc.WithNow(func() time.Time { return testNow })
	return f
}

func (f *fixture) open(amount int64) investments.OpenInput {
	return investments.OpenInput{
		AccountID:    f.fundAc.ID,
		Amount:       decimal.NewFromInt(amount),
		Type:         "Fixed Deposit",
		InterestRate: decimal.NewFromInt(8),
		InitiatedBy:  f.bank.ID,
	}
}

func TestOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Open(ctx, f.open(10000))
	require.NoError(t, err)

	assert.Equal(t, investments.StatusActive, inv.Status)
	assert.True(t, inv.Principal.Equal(decimal.NewFromInt(10000)))
	require.NotNil(t, inv.TransactionID)

	bank, err := f.store.GetAccount(ctx, f.bankAc.ID)
	require.NoError(t, err)
	assert.True(t, bank.Balance.Equal(decimal.NewFromInt(40000)))

	fund, err := f.store.GetAccount(ctx, f.fundAc.ID)
	require.NoError(t, err)
	assert.True(t, fund.Balance.Equal(decimal.NewFromInt(110000)))

	require.Len(t, f.store.Audits, 1)
	assert.Equal(t, "investment.open", f.store.Audits[0].Action)
}

func TestOpenWithoutBankAccount(t *testing.T) {
	f := newFixture(t)
	svc := investments.NewService(f.repo, nil, decimal.NewFromInt(80))

	_, err := svc.Open(context.Background(), f.open(10000))
	var cerr *ledger.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestCreditPaysPrincipalPlusInterest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Open(ctx, f.open(10000))
	require.NoError(t, err)

	crediting, err := f.svc.Credit(ctx, investments.CreditInput{
		InvestmentID: inv.ID,
		Interest:     decimal.NewFromInt(800),
		InitiatedBy:  f.bank.ID,
	})
	require.NoError(t, err)

	assert.True(t, crediting.Amount.Equal(decimal.NewFromInt(10800)))
	assert.True(t, crediting.InterestEarned.Equal(decimal.NewFromInt(800)))

	bank, err := f.store.GetAccount(ctx, f.bankAc.ID)
	require.NoError(t, err)
	assert.True(t, bank.Balance.Equal(decimal.NewFromInt(50800)), "bank ends up with principal plus interest")

	matured, err := f.svc.GetInvestment(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, investments.StatusMatured, matured.Status)
	require.NotNil(t, matured.ClosedAt)

	// Interest earned raises equity capital.
	key := ledgertest.TotalKey(f.branch, balancesheet.KindCapital, balancesheet.LineEquityCapital)
	assert.True(t, f.store.Totals[key].Equal(decimal.NewFromInt(800)))

	txn, err := f.store.GetTransaction(ctx, crediting.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeInterestCrediting, txn.Type)
}

func TestCreditMissingInvestment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Credit(context.Background(), investments.CreditInput{
		InvestmentID: uuid.New(),
		Interest:     decimal.NewFromInt(100),
		InitiatedBy:  f.bank.ID,
	})
	require.ErrorIs(t, err, investments.ErrNotFound)
}

func TestCreditMaturedInvestmentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Open(ctx, f.open(10000))
	require.NoError(t, err)

	_, err = f.svc.Credit(ctx, investments.CreditInput{InvestmentID: inv.ID, Interest: decimal.NewFromInt(800), InitiatedBy: f.bank.ID})
	require.NoError(t, err)

	_, err = f.svc.Credit(ctx, investments.CreditInput{InvestmentID: inv.ID, Interest: decimal.NewFromInt(800), InitiatedBy: f.bank.ID})
	require.ErrorIs(t, err, investments.ErrNotActive)
}

func TestCreditNegativeInterest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Credit(context.Background(), investments.CreditInput{
		InvestmentID: uuid.New(),
		Interest:     decimal.NewFromInt(-1),
		InitiatedBy:  f.bank.ID,
	})
	require.ErrorIs(t, err, investments.ErrNegativeInterest)
}

func TestCreditFailureLeavesInvestmentActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Open(ctx, f.open(10000))
	require.NoError(t, err)

	// Drain the counterparty so the payout debit cannot clear the floor.
	fund := f.fundAc
	fund.Balance = decimal.NewFromInt(100)
	f.store.SeedAccount(fund)

	_, err = f.svc.Credit(ctx, investments.CreditInput{InvestmentID: inv.ID, Interest: decimal.NewFromInt(800), InitiatedBy: f.bank.ID})
	require.Error(t, err)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.RuleInsufficientFunds, verr.Rule)

	still, err := f.svc.GetInvestment(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, investments.StatusActive, still.Status, "failed payout must leave the investment active")
	assert.Empty(t, f.repo.creditings)
}
