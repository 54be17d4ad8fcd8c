package orchestrator

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/streampanel/creditgate/internal/domain"
	"github.com/streampanel/creditgate/pkg/moneypkg"
	"github.com/streampanel/creditgate/pkg/randompkg"
)

func testAccount(id, role, balance string) domain.Account {
	return domain.Account{
		ID:       id,
		Username: randompkg.Owner(),
		Role:     role,
		Balance:  balance,
		Currency: moneypkg.USD,
	}
}

func testPolicy() domain.CappingPolicy {
	return domain.CappingPolicy{
		DistributorFloor: decimal.RequireFromString("10000"),
		ResellerFloor:    decimal.RequireFromString("1000"),
	}
}

func TestCanTransitionTo(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		current string
		target  string
		want    bool
	}{
		{StateIdle, StateRefreshingBalances, true},
		{StateIdle, StateSubmitting, false},
		{StateRefreshingBalances, StateReady, true},
		{StateRefreshingBalances, StateFailed, true},
		{StateRefreshingBalances, StateIdle, true},
		{StateIdle, StateReady, false},
		{StateReady, StateSubmitting, true},
		{StateSubmitting, StateSettled, true},
		{StateSubmitting, StateReady, false},
		{StateSettled, StateRefreshingBalances, true},
		{StateFailed, StateIdle, true},
		{"unknown", StateIdle, false},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.want, CanTransitionTo(tc.current, tc.target),
			"CanTransitionTo(%s, %s)", tc.current, tc.target)
	}
}

func TestOpenRefreshesBalances(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	actor := testAccount("a", domain.RoleDistributor, "15000")
	target := testAccount("b", domain.RoleReseller, "500")

	ledger.EXPECT().Me(gomock.Any()).Times(1).Return(actor, nil)
	ledger.EXPECT().Account(gomock.Any(), gomock.Eq("b")).Times(1).Return(target, nil)

	states := o.Subscribe()

	gotSender, gotTarget, err := o.Open(context.Background(), "b")
	require.NoError(t, err)
	require.Equal(t, actor, gotSender)
	require.Equal(t, target, gotTarget)
	require.Equal(t, StateReady, o.State())

	require.Equal(t, StateRefreshingBalances, <-states)
	require.Equal(t, StateReady, <-states)
}

func TestOpenLedgerFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	ledger.EXPECT().Me(gomock.Any()).Times(1).Return(domain.Account{}, domain.ErrNetwork)

	_, _, err := o.Open(context.Background(), "b")
	require.ErrorIs(t, err, domain.ErrNetwork)
	require.Equal(t, StateFailed, o.State())
}

func TestResetDuringRefreshDiscardsCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	actor := testAccount("a", domain.RoleAdmin, "2000")

	ledger.EXPECT().
		Me(gomock.Any()).
		Times(1).
		DoAndReturn(func(ctx context.Context) (domain.Account, error) {
			// The actor abandons the form while balances are in flight.
			require.NoError(t, o.Reset())
			return actor, nil
		})

	_, _, err := o.Open(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrNotReady)
	require.Equal(t, StateIdle, o.State())
}

func TestEvaluateRequiresOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	policy.EXPECT().Get(gomock.Any()).Times(1).Return(testPolicy(), nil)

	_, err := o.Evaluate(context.Background(), domain.Transaction{
		Type:            domain.TypeCredit,
		Amount:          "100",
		TargetAccountID: "b",
	})
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func TestSubmitRequiresPassingEvaluation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	actor := testAccount("a", domain.RoleDistributor, "12000")
	target := testAccount("b", domain.RoleReseller, "500")

	ledger.EXPECT().Me(gomock.Any()).Times(1).Return(actor, nil)
	ledger.EXPECT().Account(gomock.Any(), gomock.Eq("b")).Times(1).Return(target, nil)
	ledger.EXPECT().Submit(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, _, err := o.Open(context.Background(), "b")
	require.NoError(t, err)

	// No evaluation at all.
	_, err = o.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrEvaluationRequired)

	// Rejected evaluation: sender would land below its floor.
	policy.EXPECT().Get(gomock.Any()).Times(1).Return(testPolicy(), nil)

	eval, err := o.Evaluate(context.Background(), domain.Transaction{
		Type:            domain.TypeCredit,
		Amount:          "3000",
		TargetAccountID: "b",
	})
	require.NoError(t, err)
	require.False(t, eval.Allowed)
	require.Equal(t, domain.ReasonSenderBelowFloor, eval.Reason)

	_, err = o.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrEvaluationRequired)
}

func TestSubmitSettlesAndRefreshes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	actor := testAccount("a", domain.RoleDistributor, "15000")
	target := testAccount("b", domain.RoleReseller, "500")

	record := domain.TransactionRecord{
		ID:                 "tx-1",
		Type:               domain.TypeCredit,
		Amount:             "4000",
		SenderAccountID:    "a",
		TargetAccountID:    "b",
		SenderBalanceAfter: "11000",
		TargetBalanceAfter: "4500",
	}

	// Open fetches both parties, submit refreshes both again.
	ledger.EXPECT().Me(gomock.Any()).Times(2).Return(actor, nil)
	ledger.EXPECT().Account(gomock.Any(), gomock.Eq("b")).Times(2).Return(target, nil)
	policy.EXPECT().Get(gomock.Any()).Times(1).Return(testPolicy(), nil)

	wantArg := domain.SubmitTransactionParams{
		Type:            domain.TypeCredit,
		Amount:          "4000",
		TargetAccountID: "b",
	}
	ledger.EXPECT().
		Submit(gomock.Any(), gomock.Eq(wantArg), gomock.Not(gomock.Eq(""))).
		Times(1).
		Return(record, nil)

	_, _, err := o.Open(context.Background(), "b")
	require.NoError(t, err)

	eval, err := o.Evaluate(context.Background(), domain.Transaction{
		Type:            domain.TypeCredit,
		Amount:          "4000",
		TargetAccountID: "b",
	})
	require.NoError(t, err)
	require.True(t, eval.Allowed)
	require.True(t, eval.SenderBalanceAfter.Equal(decimal.RequireFromString("11000")))
	require.True(t, eval.TargetBalanceAfter.Equal(decimal.RequireFromString("4500")))

	got, err := o.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, record, got)
	require.Equal(t, StateSettled, o.State())

	// A settled intent cannot be submitted twice.
	_, err = o.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func TestRetryReusesIdempotencyKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	actor := testAccount("a", domain.RoleDistributor, "15000")
	target := testAccount("b", domain.RoleReseller, "500")

	ledger.EXPECT().Me(gomock.Any()).AnyTimes().Return(actor, nil)
	ledger.EXPECT().Account(gomock.Any(), gomock.Eq("b")).AnyTimes().Return(target, nil)
	policy.EXPECT().Get(gomock.Any()).AnyTimes().Return(testPolicy(), nil)

	var keys []string

	ledger.EXPECT().
		Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(2).
		DoAndReturn(func(_ context.Context, _ domain.SubmitTransactionParams, key string) (domain.TransactionRecord, error) {
			keys = append(keys, key)
			if len(keys) == 1 {
				return domain.TransactionRecord{}, domain.ErrStaleBalance
			}
			return domain.TransactionRecord{ID: "tx-1"}, nil
		})

	tx := domain.Transaction{Type: domain.TypeCredit, Amount: "4000", TargetAccountID: "b"}

	_, _, err := o.Open(context.Background(), "b")
	require.NoError(t, err)

	_, err = o.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	_, err = o.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrStaleBalance)
	require.Equal(t, StateFailed, o.State())

	// Retry: re-open (fresh balances), evaluate the same intent, submit.
	_, _, err = o.Open(context.Background(), "b")
	require.NoError(t, err)

	_, err = o.Evaluate(context.Background(), tx)
	require.NoError(t, err)

	_, err = o.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, keys, 2)
	require.Equal(t, keys[0], keys[1])
}

func TestChangedIntentGetsFreshKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	actor := testAccount("a", domain.RoleDistributor, "50000")
	target := testAccount("b", domain.RoleReseller, "500")

	ledger.EXPECT().Me(gomock.Any()).AnyTimes().Return(actor, nil)
	ledger.EXPECT().Account(gomock.Any(), gomock.Eq("b")).AnyTimes().Return(target, nil)
	policy.EXPECT().Get(gomock.Any()).AnyTimes().Return(testPolicy(), nil)

	var keys []string

	ledger.EXPECT().
		Submit(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(2).
		DoAndReturn(func(_ context.Context, _ domain.SubmitTransactionParams, key string) (domain.TransactionRecord, error) {
			keys = append(keys, key)
			if len(keys) == 1 {
				return domain.TransactionRecord{}, domain.ErrStaleBalance
			}
			return domain.TransactionRecord{ID: "tx-2"}, nil
		})

	_, _, err := o.Open(context.Background(), "b")
	require.NoError(t, err)

	_, err = o.Evaluate(context.Background(), domain.Transaction{Type: domain.TypeCredit, Amount: "4000", TargetAccountID: "b"})
	require.NoError(t, err)

	_, err = o.Submit(context.Background())
	require.ErrorIs(t, err, domain.ErrStaleBalance)

	_, _, err = o.Open(context.Background(), "b")
	require.NoError(t, err)

	// Different amount is a different intent.
	_, err = o.Evaluate(context.Background(), domain.Transaction{Type: domain.TypeCredit, Amount: "2000", TargetAccountID: "b"})
	require.NoError(t, err)

	_, err = o.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, keys, 2)
	require.NotEqual(t, keys[0], keys[1])
}

func TestSelfCreditSkipsTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	admin := testAccount("a", domain.RoleAdmin, "2000")

	// No Account calls at all: there is no counterparty.
	ledger.EXPECT().Me(gomock.Any()).Times(2).Return(admin, nil)
	policy.EXPECT().Get(gomock.Any()).Times(1).Return(testPolicy(), nil)
	ledger.EXPECT().
		Submit(gomock.Any(), gomock.Eq(domain.SubmitTransactionParams{Type: domain.TypeSelfCredit, Amount: "5000"}), gomock.Any()).
		Times(1).
		Return(domain.TransactionRecord{ID: "tx-3", SenderBalanceAfter: "7000"}, nil)

	_, _, err := o.Open(context.Background(), "")
	require.NoError(t, err)

	eval, err := o.Evaluate(context.Background(), domain.Transaction{Type: domain.TypeSelfCredit, Amount: "5000"})
	require.NoError(t, err)
	require.True(t, eval.Allowed)
	require.True(t, eval.SenderBalanceAfter.Equal(decimal.RequireFromString("7000")))

	_, err = o.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateSettled, o.State())
}

func TestReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)
	o := New(ledger, policy)

	actor := testAccount("a", domain.RoleAdmin, "2000")
	ledger.EXPECT().Me(gomock.Any()).Times(1).Return(actor, nil)

	_, _, err := o.Open(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, StateReady, o.State())

	require.NoError(t, o.Reset())
	require.Equal(t, StateIdle, o.State())

	policy.EXPECT().Get(gomock.Any()).Times(1).Return(testPolicy(), nil)

	_, err = o.Evaluate(context.Background(), domain.Transaction{Type: domain.TypeSelfCredit, Amount: "1"})
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func TestRegistryReturnsSameOrchestratorPerActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := NewMockLedger(ctrl)
	policy := NewMockPolicyGetter(ctrl)

	registry := NewRegistry(ledger, policy)

	first := registry.For("alice")
	second := registry.For("alice")
	other := registry.For("bob")

	require.Same(t, first, second)
	require.NotSame(t, first, other)
}
