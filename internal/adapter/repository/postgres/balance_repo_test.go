package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

type sequenceIDs struct{ n int }

func (s *sequenceIDs) Generate() string {
	s.n++
	return fmt.Sprintf("bal-%d", s.n)
}

var balanceRowColumns = []string{
	"id", "account_id", "date", "currency", "balance", "cash_balance",
	"start_cash_balance", "start_non_cash_balance", "cash_inflows", "cash_outflows",
	"non_cash_inflows", "non_cash_outflows", "net_market_flows", "cash_adjustments",
	"non_cash_adjustments", "flows_factor", "created_at", "updated_at",
}

func newBalanceRepo(pool pgxmock.PgxPoolIface) *BalanceRepository {
	return &BalanceRepository{
		db:    pool,
		idGen: &sequenceIDs{},
		now:   func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func balanceRows(n int) []*domain.Balance {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]*domain.Balance, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, &domain.Balance{
			AccountID:   "acc-1",
			Currency:    "USD",
			Date:        start.AddDate(0, 0, i),
			Balance:     decimal.NewFromInt(int64(1000 + i)),
			CashBalance: decimal.NewFromInt(int64(1000 + i)),
			FlowsFactor: 1,
		})
	}
	return rows
}

func TestBalanceRepositoryUpsertBatchChunks(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		batchSize int
		wantExecs []int
	}{
		{name: "single chunk", rows: 3, batchSize: 1000, wantExecs: []int{3}},
		{name: "exact chunks", rows: 4, batchSize: 2, wantExecs: []int{2, 2}},
		{name: "trailing chunk", rows: 5, batchSize: 2, wantExecs: []int{2, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			tx := beginTx(t, pool)
			for _, n := range tt.wantExecs {
				args := make([]any, n*balanceColumnCount)
				for i := range args {
					args[i] = pgxmock.AnyArg()
				}
				pool.ExpectExec("INSERT INTO balances .+ ON CONFLICT \\(account_id, date, currency\\) DO UPDATE").
					WithArgs(args...).
					WillReturnResult(pgxmock.NewResult("INSERT", int64(n)))
			}

			written, err := newBalanceRepo(pool).UpsertBatch(context.Background(), tx, balanceRows(tt.rows), tt.batchSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if written != tt.rows {
				t.Fatalf("expected %d rows written, got %d", tt.rows, written)
			}
			assertExpectations(t, pool)
		})
	}
}

func TestBalanceRepositoryBuildUpsertKeepsExistingIDs(t *testing.T) {
	repo := newBalanceRepo(nil)
	rows := balanceRows(2)
	rows[0].ID = "existing"

	sql, args := repo.buildUpsert(rows, time.Now())

	if len(args) != 2*balanceColumnCount {
		t.Fatalf("expected %d args, got %d", 2*balanceColumnCount, len(args))
	}
	if args[0] != "existing" {
		t.Errorf("expected existing id kept, got %v", args[0])
	}
	if args[balanceColumnCount] != "bal-1" {
		t.Errorf("expected a minted id for the new row, got %v", args[balanceColumnCount])
	}
	if !strings.Contains(sql, "$36)") {
		t.Errorf("expected placeholders up to $36, got %s", sql)
	}
	if strings.Contains(sql, "id = EXCLUDED.id") || strings.Contains(sql, "created_at = EXCLUDED") {
		t.Error("conflict update must not overwrite id or created_at")
	}
}

func TestBalanceRepositoryUpsertBatchRejectsBadBatchSize(t *testing.T) {
	if _, err := newBalanceRepo(nil).UpsertBatch(context.Background(), nil, balanceRows(1), 0); err == nil {
		t.Fatal("expected error for zero batch size")
	}
}

func TestBalanceRepositoryUpsertBatchWrapsErrors(t *testing.T) {
	pool := newMockPool(t)
	boom := errors.New("boom")
	args := make([]any, balanceColumnCount)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	pool.ExpectExec("INSERT INTO balances").WithArgs(args...).WillReturnError(boom)

	written, err := newBalanceRepo(pool).UpsertBatch(context.Background(), nil, balanceRows(1), 250)
	if !errors.Is(err, boom) || written != 0 {
		t.Fatalf("expected wrapped boom with nothing written, got %d, %v", written, err)
	}
}

func TestBalanceRepositoryLookups(t *testing.T) {
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	row := func() *pgxmock.Rows {
		return pgxmock.NewRows(balanceRowColumns).AddRow(
			"bal-1", "acc-1", "2024-01-02", "USD", "900", "900",
			"1000", "0", "0", "100", "0", "0", "0", "0", "0",
			int16(-1), created, created,
		)
	}
	date := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   string
		rows    *pgxmock.Rows
		call    func(*BalanceRepository) (*domain.Balance, error)
		wantErr error
	}{
		{
			name:  "latest before",
			query: "date < \\$3",
			rows:  row(),
			call: func(r *BalanceRepository) (*domain.Balance, error) {
				return r.GetLatestBefore(context.Background(), nil, "acc-1", "USD", date)
			},
		},
		{
			name:  "on or before",
			query: "date <= \\$3",
			rows:  row(),
			call: func(r *BalanceRepository) (*domain.Balance, error) {
				return r.GetOnOrBefore(context.Background(), nil, "acc-1", "USD", date)
			},
		},
		{
			name:    "latest missing",
			query:   "ORDER BY date DESC LIMIT 1",
			rows:    pgxmock.NewRows(balanceRowColumns),
			wantErr: domain.ErrBalanceNotFound,
			call: func(r *BalanceRepository) (*domain.Balance, error) {
				return r.GetLatest(context.Background(), nil, "acc-1", "USD")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			pool.ExpectQuery(tt.query).WillReturnRows(tt.rows)

			b, err := tt.call(newBalanceRepo(pool))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.FlowsFactor != -1 || !b.CashOutflows.Equal(decimal.NewFromInt(100)) {
				t.Errorf("unexpected row %+v", b)
			}
			if got := domain.FormatDate(b.Date); got != "2024-01-02" {
				t.Errorf("expected 2024-01-02, got %s", got)
			}
			assertExpectations(t, pool)
		})
	}
}

func TestBalanceRepositoryPurges(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	keep := []time.Time{from, to}

	pool := newMockPool(t)
	tx := beginTx(t, pool)
	pool.ExpectExec("date < \\$3 OR date > \\$4").
		WithArgs("acc-1", "USD", timeToPgDate(from), timeToPgDate(to)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	pool.ExpectExec("NOT \\(date = ANY\\(\\$5::date\\[\\]\\)\\)").
		WithArgs("acc-1", "USD", timeToPgDate(from), timeToPgDate(to),
			[]pgtype.Date{timeToPgDate(from), timeToPgDate(to)}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repo := newBalanceRepo(pool)
	outside, err := repo.DeleteOutsideRange(context.Background(), tx, "acc-1", "USD", from, to)
	if err != nil || outside != 4 {
		t.Fatalf("expected 4 purged outside the range, got %d, %v", outside, err)
	}
	inside, err := repo.DeleteInRangeExcept(context.Background(), tx, "acc-1", "USD", from, to, keep)
	if err != nil || inside != 2 {
		t.Fatalf("expected 2 purged inside the range, got %d, %v", inside, err)
	}
	assertExpectations(t, pool)
}
