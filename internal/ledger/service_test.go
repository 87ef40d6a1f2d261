package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocket-bank/pocket-bank/internal/ledger"
	"github.com/pocket-bank/pocket-bank/internal/ledger/ledgertest"
)

var testNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store   *ledgertest.Store
	svc     *ledger.Service
	branch  uuid.UUID
	alice   ledger.Entity
	bob     ledger.Entity
	aliceAc ledger.Account
	bobAc   ledger.Account
}

func newFixture(t *testing.T, floor decimal.Decimal) *fixture {
	t.Helper()
	f := &fixture{
		store:  ledgertest.NewStore(),
		branch: uuid.New(),
	}
	f.svc = ledger.NewService(f.store, floor)
	f.svc.WithNow(func() time.Time { return testNow })

	f.alice = ledger.Entity{ID: uuid.New(), Name: "Alice Mwangi", Kind: ledger.EntityIndividual, BranchID: f.branch}
	f.bob = ledger.Entity{ID: uuid.New(), Name: "Bob Otieno", Kind: ledger.EntityIndividual, BranchID: f.branch}
	f.store.SeedEntity(f.alice)
	f.store.SeedEntity(f.bob)

	f.aliceAc = ledger.Account{ID: uuid.New(), Number: "1000000000001", Name: f.alice.Name, OwnerID: f.alice.ID, Type: "Savings", BranchID: f.branch, Balance: decimal.NewFromInt(500)}
	f.bobAc = ledger.Account{ID: uuid.New(), Number: "1000000000002", Name: f.bob.Name, OwnerID: f.bob.ID, Type: "Savings", BranchID: f.branch, Balance: decimal.NewFromInt(200)}
	f.store.SeedAccount(f.aliceAc)
	f.store.SeedAccount(f.bobAc)
	return f
}

func (f *fixture) transfer(amount int64) ledger.SubmitInput {
	return ledger.SubmitInput{
		SenderID:    &f.aliceAc.ID,
		RecipientID: &f.bobAc.ID,
		Type:        ledger.TypeTransfer,
		Direction:   ledger.DirectionInternal,
		Amount:      decimal.NewFromInt(amount),
		InitiatedBy: f.alice.ID,
		BranchID:    f.branch,
	}
}

func violationRule(t *testing.T, err error) ledger.Rule {
	t.Helper()
	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Rule
}

func TestSubmitInternalTransfer(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	txn, err := f.svc.Submit(ctx, f.transfer(150))
	require.NoError(t, err)

	assert.Equal(t, ledger.TxnStatusCommitted, txn.Status)
	require.NotNil(t, txn.SenderBalance)
	require.NotNil(t, txn.RecipientBalance)
	assert.True(t, txn.SenderBalance.Equal(decimal.NewFromInt(350)), "sender post balance: %s", txn.SenderBalance)
	assert.True(t, txn.RecipientBalance.Equal(decimal.NewFromInt(350)), "recipient post balance: %s", txn.RecipientBalance)

	sender, err := f.store.GetAccount(ctx, f.aliceAc.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.NewFromInt(350)))

	recipient, err := f.store.GetAccount(ctx, f.bobAc.ID)
	require.NoError(t, err)
	assert.True(t, recipient.Balance.Equal(decimal.NewFromInt(350)))

	require.Len(t, f.store.Audits, 1)
	assert.Equal(t, "transaction.submit", f.store.Audits[0].Action)
}

func TestSubmitExternalWithdrawal(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))

	txn, err := f.svc.Submit(context.Background(), ledger.SubmitInput{
		SenderID:    &f.aliceAc.ID,
		Type:        ledger.TypeWithdrawal,
		Direction:   ledger.DirectionExternal,
		Amount:      decimal.NewFromInt(100),
		InitiatedBy: f.alice.ID,
		BranchID:    f.branch,
		ExternalRef: "ATM-55012",
	})
	require.NoError(t, err)
	assert.Nil(t, txn.RecipientID)
	assert.Nil(t, txn.RecipientBalance)
	require.NotNil(t, txn.SenderBalance)
	assert.True(t, txn.SenderBalance.Equal(decimal.NewFromInt(400)))
}

func TestSubmitValidationRules(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))

	tests := []struct {
		name string
		in   func() ledger.SubmitInput
		rule ledger.Rule
	}{
		{"zero amount", func() ledger.SubmitInput {
			return f.transfer(0)
		}, ledger.RuleAmountNotPositive},
		{"negative amount", func() ledger.SubmitInput {
			in := f.transfer(10)
			in.Amount = decimal.NewFromInt(-10)
			return in
		}, ledger.RuleAmountNotPositive},
		{"internal missing recipient", func() ledger.SubmitInput {
			in := f.transfer(10)
			in.RecipientID = nil
			return in
		}, ledger.RuleDirectionMismatch},
		{"same account", func() ledger.SubmitInput {
			in := f.transfer(10)
			in.RecipientID = in.SenderID
			return in
		}, ledger.RuleSameAccount},
		{"external with both legs", func() ledger.SubmitInput {
			in := f.transfer(10)
			in.Direction = ledger.DirectionExternal
			in.ExternalRef = "X-1"
			return in
		}, ledger.RuleDirectionMismatch},
		{"external without reference", func() ledger.SubmitInput {
			in := f.transfer(10)
			in.Direction = ledger.DirectionExternal
			in.RecipientID = nil
			return in
		}, ledger.RuleExternalRefMissing},
		{"unknown direction", func() ledger.SubmitInput {
			in := f.transfer(10)
			in.Direction = "SIDEWAYS"
			return in
		}, ledger.RuleDirectionMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tc.in())
			require.Error(t, err)
			assert.Equal(t, tc.rule, violationRule(t, err))
		})
	}
}

func TestSubmitInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	// 500 - 450 = 50, below the 80 reserve floor.
	_, err := f.svc.Submit(ctx, f.transfer(450))
	require.Error(t, err)
	assert.Equal(t, ledger.RuleInsufficientFunds, violationRule(t, err))

	sender, err := f.store.GetAccount(ctx, f.aliceAc.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.NewFromInt(500)), "failed submit must not move money")
	assert.Empty(t, f.store.Transactions)
	assert.Empty(t, f.store.Audits)
}

func TestSubmitUnauthorizedInitiator(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))

	in := f.transfer(50)
	in.InitiatedBy = f.bob.ID
	_, err := f.svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, ledger.RuleUnauthorized, violationRule(t, err))
}

func TestSubmitSystemOriginatedTypeRejected(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	// Adjustment skips the ownership check inside the gate, so the API must
	// not accept it. Bob tries to debit Alice with it.
	in := f.transfer(50)
	in.Type = ledger.TypeAdjustment
	in.InitiatedBy = f.bob.ID

	_, err := f.svc.Submit(ctx, in)
	require.Error(t, err)
	assert.Equal(t, ledger.RuleUnauthorized, violationRule(t, err))

	sender, err := f.store.GetAccount(ctx, f.aliceAc.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.NewFromInt(500)), "reserved type must not move money")
	assert.Empty(t, f.store.Transactions)
}

func TestSubmitInactiveAccount(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	frozen := f.bobAc
	frozen.Status = ledger.AccountFrozen
	f.store.SeedAccount(frozen)

	_, err := f.svc.Submit(context.Background(), f.transfer(50))
	require.Error(t, err)
	assert.Equal(t, ledger.RuleAccountNotActive, violationRule(t, err))
}

func TestSubmitFailedCreditRollsBackDebit(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	missing := uuid.New()
	in := f.transfer(50)
	in.RecipientID = &missing

	_, err := f.svc.Submit(ctx, in)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	sender, err := f.store.GetAccount(ctx, f.aliceAc.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.NewFromInt(500)), "debit must roll back with the failed credit")
	assert.Empty(t, f.store.Transactions)
}

func TestConcurrentDebitsExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))

	// Alice holds 500. Each debit of 300 is individually fine, but the second
	// would land below the floor. Exactly one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Submit(context.Background(), f.transfer(300))
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, ledger.RuleInsufficientFunds, violationRule(t, err))
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one of two competing debits must fail")

	sender, err := f.store.GetAccount(context.Background(), f.aliceAc.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.NewFromInt(200)))
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	account, err := f.svc.CreateAccount(ctx, ledger.CreateAccountInput{
		OwnerID:        f.alice.ID,
		Type:           "Current",
		OpeningBalance: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	assert.Len(t, account.Number, 13)
	assert.Equal(t, ledger.AccountActive, account.Status)
	assert.Equal(t, f.branch, account.BranchID, "branch defaults to the owner's branch")
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(1000)))

	var opening *ledger.Transaction
	for _, txn := range f.store.Transactions {
		if txn.Type == ledger.TypeAccountCreation {
			cp := txn
			opening = &cp
		}
	}
	require.NotNil(t, opening, "account creation must write an opening transaction")
	assert.True(t, opening.Amount.IsZero())
	require.NotNil(t, opening.RecipientBalance)
	assert.True(t, opening.RecipientBalance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, ledger.TxnStatusCommitted, opening.Status)

	require.Len(t, f.store.BalanceEntries, 2)
	kinds := map[string]decimal.Decimal{}
	for _, e := range f.store.BalanceEntries {
		kinds[string(e.Kind)+"/"+e.LineType] = e.Value
	}
	assert.True(t, kinds["CAPITAL/Equity Capital"].Equal(decimal.NewFromInt(1000)))
	assert.True(t, kinds["ASSET/Cash"].Equal(decimal.NewFromInt(1000)))

	require.Len(t, f.store.Audits, 1)
	assert.Equal(t, "account.create", f.store.Audits[0].Action)
}

func TestCreateAccountZeroOpeningSkipsBalanceSheet(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))

	_, err := f.svc.CreateAccount(context.Background(), ledger.CreateAccountInput{
		OwnerID: f.alice.ID,
		Type:    "Savings",
	})
	require.NoError(t, err)
	assert.Empty(t, f.store.BalanceEntries)
}

func TestCreateAccountNegativeOpening(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))

	_, err := f.svc.CreateAccount(context.Background(), ledger.CreateAccountInput{
		OwnerID:        f.alice.ID,
		Type:           "Savings",
		OpeningBalance: decimal.NewFromInt(-5),
	})
	require.Error(t, err)
	assert.Equal(t, ledger.RuleNegativeOpening, violationRule(t, err))
}

func TestReverseRestoresBalances(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	txn, err := f.svc.Submit(ctx, f.transfer(150))
	require.NoError(t, err)

	reversal, err := f.svc.Reverse(ctx, txn.ID, f.bob.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.TypeAdjustment, reversal.Type)
	assert.Equal(t, ledger.TxnStatusCommitted, reversal.Status)

	orig, err := f.store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxnStatusReversed, orig.Status)
	assert.True(t, orig.Amount.Equal(txn.Amount), "reversal must not edit the original record")

	sender, err := f.store.GetAccount(ctx, f.aliceAc.ID)
	require.NoError(t, err)
	assert.True(t, sender.Balance.Equal(decimal.NewFromInt(500)))

	recipient, err := f.store.GetAccount(ctx, f.bobAc.ID)
	require.NoError(t, err)
	assert.True(t, recipient.Balance.Equal(decimal.NewFromInt(200)))
}

func TestReverseTwiceRejected(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	txn, err := f.svc.Submit(ctx, f.transfer(150))
	require.NoError(t, err)

	_, err = f.svc.Reverse(ctx, txn.ID, f.bob.ID)
	require.NoError(t, err)

	_, err = f.svc.Reverse(ctx, txn.ID, f.bob.ID)
	require.Error(t, err)
	assert.Equal(t, ledger.RuleNotReversible, violationRule(t, err))
}

func TestReverseExemptFromReserveFloor(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))
	ctx := context.Background()

	txn, err := f.svc.Submit(ctx, f.transfer(150))
	require.NoError(t, err)

	// Drain Bob down to the floor. The reversal then debits Bob 150, landing
	// at 50, which a customer-initiated debit could never do.
	_, err = f.svc.Submit(ctx, ledger.SubmitInput{
		SenderID:    &f.bobAc.ID,
		Type:        ledger.TypeWithdrawal,
		Direction:   ledger.DirectionExternal,
		Amount:      decimal.NewFromInt(150),
		InitiatedBy: f.bob.ID,
		BranchID:    f.branch,
		ExternalRef: "ATM-1",
	})
	require.NoError(t, err)

	_, err = f.svc.Reverse(ctx, txn.ID, f.bob.ID)
	require.NoError(t, err)

	recipient, err := f.store.GetAccount(ctx, f.bobAc.ID)
	require.NoError(t, err)
	assert.True(t, recipient.Balance.Equal(decimal.NewFromInt(50)))
}

// lockRecorder captures the order LockAccount is called in.
type lockRecorder struct {
	ledger.TxRepository
	locked []uuid.UUID
}

func (r *lockRecorder) LockAccount(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	r.locked = append(r.locked, id)
	return r.TxRepository.LockAccount(ctx, id)
}

func TestLockAccountsOrdersByID(t *testing.T) {
	f := newFixture(t, decimal.NewFromInt(80))

	pairs := [][2]uuid.UUID{
		{f.aliceAc.ID, f.bobAc.ID},
		{f.bobAc.ID, f.aliceAc.ID},
	}
	for _, pair := range pairs {
		rec := &lockRecorder{}
		err := f.store.WithTx(context.Background(), func(ctx context.Context, tx ledger.TxRepository) error {
			rec.TxRepository = tx
			a, b, err := ledger.LockAccounts(ctx, rec, pair[0], pair[1])
			require.NoError(t, err)
			assert.Equal(t, pair[0], a.ID, "accounts return in argument order")
			assert.Equal(t, pair[1], b.ID)
			return nil
		})
		require.NoError(t, err)

		require.Len(t, rec.locked, 2)
		assert.True(t, rec.locked[0].String() < rec.locked[1].String(),
			"locks must be acquired in ascending ID order regardless of argument order")
	}
}

func TestAccountNumberFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n, err := ledger.AccountNumber()
		require.NoError(t, err)
		require.Len(t, n, 13)
		assert.NotEqual(t, byte('0'), n[0])
		for _, c := range n {
			assert.True(t, c >= '0' && c <= '9')
		}
		seen[n] = true
	}
	assert.Greater(t, len(seen), 95, "numbers should be effectively unique")
}
