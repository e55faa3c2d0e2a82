package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
	"github.com/iho/ledgerbook/internal/usecase/mocks"
)

type materializerFixture struct {
	account   *domain.Account
	accounts  *mocks.MockAccountRepository
	entries   *mocks.MockEntryRepository
	balances  *mocks.MockBalanceRepository
	outbox    *mocks.MockOutboxRepository
	txManager *mocks.MockTransactionManager
	locker    *mocks.MockAccountLocker
	notifier  *mocks.MockSyncNotifier
	holdings  *mocks.MockHoldingsMaterializer
}

func newMaterializerFixture(t *testing.T, account *domain.Account, entries ...*domain.Entry) *materializerFixture {
	ctrl := gomock.NewController(t)
	return &materializerFixture{
		account:   account,
		accounts:  mocks.NewMockAccountRepository(account),
		entries:   mocks.NewMockEntryRepository(entries...),
		balances:  mocks.NewMockBalanceRepository(),
		outbox:    mocks.NewMockOutboxRepository(),
		txManager: mocks.NewMockTransactionManager(),
		locker:    mocks.NewMockAccountLocker(ctrl),
		notifier:  mocks.NewMockSyncNotifier(ctrl),
		holdings:  mocks.NewMockHoldingsMaterializer(ctrl),
	}
}

// allowLock lets every try-lock succeed and expects the release to hand the
// same token back.
func (f *materializerFixture) allowLock() {
	key := usecase.BalanceSyncLockPrefix + f.account.ID
	f.locker.EXPECT().TryAcquire(gomock.Any(), key).Return("token-1", true, nil).AnyTimes()
	f.locker.EXPECT().Release(gomock.Any(), key, "token-1").Return(nil).AnyTimes()
}

func (f *materializerFixture) materializer(t *testing.T) *usecase.BalanceMaterializer {
	return usecase.NewBalanceMaterializer(usecase.MaterializerDeps{
		TxManager:            f.txManager,
		Accounts:             f.accounts,
		Balances:             f.balances,
		Entries:              f.entries,
		Outbox:               f.outbox,
		Locker:               f.locker,
		Notifier:             f.notifier,
		HoldingsMaterializer: f.holdings,
		IDGen:                mocks.NewMockIDGenerator(),
		Logger:               zerolog.Nop(),
		Clock:                fixedClock(day(t, "2024-01-10")),
	}, usecase.DefaultMaterializerConfig())
}

func checkingFixture(t *testing.T) *materializerFixture {
	acc, _ := checkingLedger(t)
	return newMaterializerFixture(t, acc,
		newEntry(t, "e-1", "acc-1", "2024-01-02", "100", domain.EntryKindTransaction),
		newEntry(t, "e-2", "acc-1", "2024-01-03", "-50", domain.EntryKindTransaction),
	)
}

func TestBalanceMaterializer_FullRebuild(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()

	result, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.NoError(t, err)

	assert.Equal(t, usecase.FullPlan(usecase.PlanReasonRequested), result.Plan)
	assert.Equal(t, 1, result.Passes)
	assert.Equal(t, 3, result.RowsUpserted)
	assert.False(t, result.Downgraded)
	assert.Equal(t, "2024-01-01", domain.FormatDate(*result.FirstDate))
	assert.Equal(t, "2024-01-03", domain.FormatDate(*result.LastDate))
	assertDecimal(t, "result balance", "950", result.Balance)

	rows := f.balances.Rows("acc-1", "USD")
	require.Len(t, rows, 3)
	assertCloses(t, rows)

	assertDecimal(t, "account balance", "950", f.account.Balance)
	assertDecimal(t, "account cash", "950", f.account.CashBalance)
	assert.Equal(t, []int{1000}, f.balances.BatchSizes)
	assert.Equal(t, []string{domain.EventTypeBalanceSynced}, f.outbox.EventTypes())
	assert.Equal(t, 1, f.txManager.Commits)
}

func TestBalanceMaterializer_Idempotent(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()
	m := f.materializer(t)

	_, err := m.Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.NoError(t, err)
	first := f.balances.Rows("acc-1", "USD")

	_, err = m.Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.NoError(t, err)
	second := f.balances.Rows("acc-1", "USD")

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].SameValues(second[i]), "row %s changed on rerun", domain.FormatDate(first[i].Date))
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].CreatedAt, second[i].CreatedAt)
	}
}

func TestBalanceMaterializer_WindowedMatchesFull(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()
	m := f.materializer(t)

	_, err := m.Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.NoError(t, err)
	full := f.balances.Rows("acc-1", "USD")

	result, err := m.Materialize(context.Background(), usecase.MaterializeInput{
		AccountID:   "acc-1",
		WindowStart: dayPtr(t, "2024-01-03"),
	})
	require.NoError(t, err)

	assert.Equal(t, usecase.PlanModeWindowed, result.Plan.Mode)
	assert.False(t, result.Downgraded)
	assert.Equal(t, 1, result.RowsUpserted)

	windowed := f.balances.Rows("acc-1", "USD")
	require.Len(t, windowed, len(full))
	for i := range full {
		assert.True(t, full[i].SameValues(windowed[i]))
	}
}

// A backdated entry on an account whose rows already run to today must
// recompute every stored day after it, not stop at the entry date.
func TestBalanceMaterializer_WindowRecomputesStoredTail(t *testing.T) {
	acc := newAccount(t, "acc-1", domain.AccountKindDepository, "1000", "2024-01-01")
	f := newMaterializerFixture(t, acc)
	f.allowLock()
	m := f.materializer(t)

	_, err := m.Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.NoError(t, err)
	require.Len(t, f.balances.Rows("acc-1", "USD"), 10)

	require.NoError(t, f.entries.Create(context.Background(), nil,
		newEntry(t, "e-1", "acc-1", "2024-01-05", "100", domain.EntryKindTransaction)))

	result, err := m.Materialize(context.Background(), usecase.MaterializeInput{
		AccountID:   "acc-1",
		WindowStart: dayPtr(t, "2024-01-05"),
	})
	require.NoError(t, err)

	assert.Equal(t, usecase.PlanModeWindowed, result.Plan.Mode)
	assert.False(t, result.Downgraded)
	assert.Equal(t, 6, result.RowsUpserted)
	assert.Equal(t, "2024-01-10", domain.FormatDate(*result.LastDate))

	rows := f.balances.Rows("acc-1", "USD")
	require.Len(t, rows, 10)
	assertCloses(t, rows)
	assertDecimal(t, "day before the entry", "1000", rows[3].Balance)
	for _, row := range rows[4:] {
		assertDecimal(t, "balance on "+domain.FormatDate(row.Date), "900", row.Balance)
	}
	assertDecimal(t, "account balance", "900", f.account.Balance)
	assertDecimal(t, "account cash", "900", f.account.CashBalance)
}

func TestBalanceMaterializer_NoAnchorDowngrades(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()

	ws := dayPtr(t, "2024-01-03")
	f.notifier.EXPECT().NotifySyncDowngraded(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, notice domain.SyncNotice) error {
			assert.Equal(t, "acc-1", notice.AccountID)
			assert.Equal(t, string(usecase.PlanReasonNoAnchor), notice.Reason)
			assert.Equal(t, ws, notice.WindowStart)
			assert.NotEmpty(t, notice.Message)
			return nil
		})

	result, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{
		AccountID:   "acc-1",
		WindowStart: ws,
	})
	require.NoError(t, err)

	assert.True(t, result.Downgraded)
	assert.Equal(t, usecase.PlanReasonNoAnchor, result.Plan.Reason)
	assert.Equal(t, 3, result.RowsUpserted)
	assert.Equal(t, []string{domain.EventTypeBalanceDowngraded, domain.EventTypeBalanceSynced}, f.outbox.EventTypes())
}

func TestBalanceMaterializer_NotifierErrorIgnored(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()
	f.notifier.EXPECT().NotifySyncDowngraded(gomock.Any(), gomock.Any()).Return(errBoom)

	result, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{
		AccountID:   "acc-1",
		WindowStart: dayPtr(t, "2024-01-02"),
	})
	require.NoError(t, err)
	assert.True(t, result.Downgraded)
	assert.Equal(t, 1, f.txManager.Commits)
}

func TestBalanceMaterializer_LockContention(t *testing.T) {
	f := checkingFixture(t)
	f.locker.EXPECT().TryAcquire(gomock.Any(), "balance-sync:acc-1").Return("", false, nil)

	_, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.ErrorIs(t, err, domain.ErrBalanceSyncInProgress)

	assert.Empty(t, f.balances.Rows("acc-1", "USD"))
	assert.Zero(t, f.txManager.Commits)
}

func TestBalanceMaterializer_LockError(t *testing.T) {
	f := checkingFixture(t)
	f.locker.EXPECT().TryAcquire(gomock.Any(), gomock.Any()).Return("", false, errBoom)

	_, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.ErrorIs(t, err, errBoom)
}

func TestBalanceMaterializer_DeltaSpikeForcesFullRebuild(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()
	m := f.materializer(t)

	_, err := m.Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.NoError(t, err)

	// Corrupt the stored row the window will recompute.
	rows := f.balances.Rows("acc-1", "USD")
	rows[2].Balance = dec("100000")

	f.notifier.EXPECT().NotifySyncDowngraded(gomock.Any(), gomock.Any()).Return(nil)

	result, err := m.Materialize(context.Background(), usecase.MaterializeInput{
		AccountID:   "acc-1",
		WindowStart: dayPtr(t, "2024-01-03"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Passes)
	assert.Equal(t, usecase.PlanReasonDeltaSpike, result.Plan.Reason)
	assert.True(t, result.Downgraded)
	assert.Equal(t, 3, result.RowsUpserted)
	assertDecimal(t, "repaired balance", "950", f.balances.Rows("acc-1", "USD")[2].Balance)
	assert.Contains(t, f.outbox.EventTypes(), domain.EventTypeBalanceDeltaSpike)
}

func TestBalanceMaterializer_EmptyWindowEscalates(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()

	// A stale row from before the opening date anchors the window but the
	// window itself produces nothing.
	stale := &domain.Balance{AccountID: "acc-1", Currency: "USD", Date: day(t, "2023-12-05"), Balance: dec("42"), CashBalance: dec("42"), FlowsFactor: 1}
	_, err := f.balances.UpsertBatch(context.Background(), nil, []*domain.Balance{stale}, 1000)
	require.NoError(t, err)

	f.notifier.EXPECT().NotifySyncDowngraded(gomock.Any(), gomock.Any()).Return(nil)

	result, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{
		AccountID:   "acc-1",
		WindowStart: dayPtr(t, "2023-12-10"),
		WindowEnd:   dayPtr(t, "2023-12-12"),
	})
	require.NoError(t, err)

	assert.Equal(t, usecase.PlanReasonEmptyResult, result.Plan.Reason)
	assert.Equal(t, 2, result.Passes)
	assert.EqualValues(t, 1, result.RowsPurged)

	rows := f.balances.Rows("acc-1", "USD")
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01-01", domain.FormatDate(rows[0].Date))
}

func TestBalanceMaterializer_FullRebuildPurgesTrailingRows(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()

	stale := &domain.Balance{AccountID: "acc-1", Currency: "USD", Date: day(t, "2024-01-20"), Balance: dec("7"), CashBalance: dec("7"), FlowsFactor: 1}
	_, err := f.balances.UpsertBatch(context.Background(), nil, []*domain.Balance{stale}, 1000)
	require.NoError(t, err)

	result, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, result.RowsPurged)
	assertDecimal(t, "aggregate follows the last kept row", "950", f.account.Balance)
}

func TestBalanceMaterializer_FailureRollsBack(t *testing.T) {
	f := checkingFixture(t)
	f.allowLock()
	f.balances.UpsertBatchFunc = func(context.Context, usecase.Transaction, []*domain.Balance, int) (int, error) {
		return 0, errBoom
	}

	_, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{AccountID: "acc-1"})
	require.ErrorIs(t, err, errBoom)

	assert.Zero(t, f.txManager.Commits)
	assert.Empty(t, f.outbox.EventTypes())
	assertDecimal(t, "account balance untouched", "1000", f.account.Balance)
}

func TestBalanceMaterializer_ReverseStrategy(t *testing.T) {
	f := checkingFixture(t)
	anchor := dec("950")
	f.account.CurrentAnchorBalance = &anchor
	f.account.CurrentAnchorDate = dayPtr(t, "2024-01-03")
	f.allowLock()

	result, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{
		AccountID: "acc-1",
		Strategy:  domain.SyncStrategyReverse,
	})
	require.NoError(t, err)

	assert.Equal(t, usecase.PlanReasonReverseStrategy, result.Plan.Reason)
	assert.False(t, result.Downgraded)
	assertDecimal(t, "opening row", "1000", f.balances.Rows("acc-1", "USD")[0].Balance)
	assertDecimal(t, "account balance", "950", f.account.Balance)
}

func TestBalanceMaterializer_InvestmentRefreshesHoldings(t *testing.T) {
	acc := newAccount(t, "inv-1", domain.AccountKindInvestment, "1000", "2024-01-08")
	f := newMaterializerFixture(t, acc)
	f.allowLock()
	f.holdings.EXPECT().MaterializeHoldings(gomock.Any(), gomock.Any(), acc).Return(nil)

	_, err := f.materializer(t).Materialize(context.Background(), usecase.MaterializeInput{AccountID: "inv-1"})
	require.NoError(t, err)
}

func TestBalanceMaterializer_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		input   usecase.MaterializeInput
		wantErr error
	}{
		{
			name:    "inverted window",
			input:   usecase.MaterializeInput{AccountID: "acc-1", WindowStart: dayPtr(t, "2024-01-05"), WindowEnd: dayPtr(t, "2024-01-01")},
			wantErr: domain.ErrInvalidWindow,
		},
		{
			name:    "unknown strategy",
			input:   usecase.MaterializeInput{AccountID: "acc-1", Strategy: "sideways"},
			wantErr: domain.ErrInvalidStrategy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := checkingFixture(t)
			_, err := f.materializer(t).Materialize(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBatchSizeFor(t *testing.T) {
	tests := []struct {
		rows int
		want int
	}{
		{0, 1000},
		{5000, 1000},
		{5001, 500},
		{50000, 500},
		{50001, 250},
	}
	for _, tt := range tests {
		if got := usecase.BatchSizeFor(tt.rows); got != tt.want {
			t.Fatalf("BatchSizeFor(%d) = %d, want %d", tt.rows, got, tt.want)
		}
	}
}

func TestRecalculationPlan(t *testing.T) {
	end := day(t, "2024-01-31")
	windowed := usecase.WindowedPlan(day(t, "2024-01-01"), &end)
	if windowed.IsFull() {
		t.Fatal("expected a windowed plan")
	}
	if got := windowed.String(); got != "windowed(2024-01-01..2024-01-31, requested)" {
		t.Fatalf("unexpected plan string %q", got)
	}
	if req := windowed.Request(); req.WindowStart == nil || req.WindowEnd == nil {
		t.Fatalf("expected window in request, got %+v", req)
	}

	full := usecase.FullPlan(usecase.PlanReasonDeltaSpike)
	if got := full.String(); got != "full(delta_spike)" {
		t.Fatalf("unexpected plan string %q", got)
	}
	if req := full.Request(); req.WindowStart != nil || req.WindowEnd != nil {
		t.Fatalf("expected no window for a full plan, got %+v", req)
	}
}
