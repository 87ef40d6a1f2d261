package income_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-bank/pocket-bank/internal/balancesheet"
	"github.com/pocket-bank/pocket-bank/internal/income"
	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/ledger/ledgertest"
)

// memoryRepository layers income rows on the shared in-memory ledger store.
type memoryRepository struct {
	store   *ledgertest.Store
	incomes []income.Income
}

func (m *memoryRepository) WithTx(ctx context.Context, fn func(context.Context, income.TxRepository) error) error {
	snap := append([]income.Income(nil), m.incomes...)
	err := m.store.WithTx(ctx, func(ctx context.Context, ltx ledger.TxRepository) error {
		return fn(ctx, &memoryTx{TxRepository: ltx, repo: m})
	})
	if err != nil {
		m.incomes = snap
	}
	return err
}

func (m *memoryRepository) ListIncomes(ctx context.Context, limit int) ([]income.Income, error) {
	return append([]income.Income(nil), m.incomes...), nil
}

type memoryTx struct {
	ledger.TxRepository
	repo *memoryRepository
}

func (t *memoryTx) InsertIncome(ctx context.Context, inc income.Income) (income.Income, error) {
	t.repo.incomes = append(t.repo.incomes, inc)
	return inc, nil
}

var testNow = time.Date(2025, time.November, 20, 15, 45, 0, 0, time.UTC)

type fixture struct {
	store  *ledgertest.Store
	repo   *memoryRepository
	svc    *income.Service
	branch uuid.UUID
	bank   ledger.Entity
	bankAc ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  ledgertest.NewStore(),
		branch: uuid.New(),
	}
	f.repo = &memoryRepository{store: f.store}

	f.bank = ledger.Entity{ID: uuid.New(), Name: "Pocket Bank", Kind: ledger.EntitySystem, BranchID: f.branch}
	f.store.SeedEntity(f.bank)

	f.bankAc = ledger.Account{ID: uuid.New(), Number: "9000000000001", Name: f.bank.Name, OwnerID: f.bank.ID, Type: "Operating", BranchID: f.branch, Balance: decimal.NewFromInt(10000)}
	f.store.SeedAccount(f.bankAc)

	f.svc = income.NewService(f.repo, &f.bankAc.ID, decimal.NewFromInt(80))
	f.svc.WithNow(func() time.Time { return testNow })
	return f
}

func TestRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inc, err := f.svc.Record(ctx, income.RecordInput{
		Type:        "Service Charges",
		Amount:      decimal.NewFromInt(250),
		Description: "November counter fees",
		ExternalRef: "CASH-2025-11-20",
		InitiatedBy: f.bank.ID,
	})
	require.NoError(t, err)

	assert.True(t, inc.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, testNow, inc.ReceivedAt)

	bank, err := f.store.GetAccount(ctx, f.bankAc.ID)
	require.NoError(t, err)
	assert.True(t, bank.Balance.Equal(decimal.NewFromInt(10250)))

	txn, err := f.store.GetTransaction(ctx, inc.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeIncome, txn.Type)
	assert.Equal(t, ledger.DirectionExternal, txn.Direction)
	assert.Nil(t, txn.SenderID)

	cash := ledgertest.TotalKey(f.branch, balancesheet.KindAsset, balancesheet.LineCash)
	capital := ledgertest.TotalKey(f.branch, balancesheet.KindCapital, balancesheet.LineEquityCapital)
	assert.True(t, f.store.Totals[cash].Equal(decimal.NewFromInt(250)))
	assert.True(t, f.store.Totals[capital].Equal(decimal.NewFromInt(250)))

	require.Len(t, f.store.Audits, 1)
	assert.Equal(t, "income.record", f.store.Audits[0].Action)
}

func TestRecordWithoutBankAccount(t *testing.T) {
	f := newFixture(t)
	svc := income.NewService(f.repo, nil, decimal.NewFromInt(80))

	_, err := svc.Record(context.Background(), income.RecordInput{
		Type:        "Service Charges",
		Amount:      decimal.NewFromInt(250),
		ExternalRef: "CASH-1",
		InitiatedBy: f.bank.ID,
	})
	var cerr *ledger.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestRecordRequiresExternalReference(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Record(context.Background(), income.RecordInput{
		Type:        "Service Charges",
		Amount:      decimal.NewFromInt(250),
		InitiatedBy: f.bank.ID,
	})
	require.Error(t, err)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.RuleExternalRefMissing, verr.Rule)
	assert.Empty(t, f.repo.incomes)
}

func TestRecordZeroAmountRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Record(context.Background(), income.RecordInput{
		Type:        "Service Charges",
		ExternalRef: "CASH-1",
		InitiatedBy: f.bank.ID,
	})
	require.Error(t, err)
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ledger.RuleAmountNotPositive, verr.Rule)
}
