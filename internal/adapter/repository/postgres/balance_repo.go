package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const balanceColumns = `id, account_id, date, currency, balance, cash_balance,
	start_cash_balance, start_non_cash_balance, cash_inflows, cash_outflows,
	non_cash_inflows, non_cash_outflows, net_market_flows, cash_adjustments,
	non_cash_adjustments, flows_factor, created_at, updated_at`

const balanceColumnCount = 18

// The conflict target keeps the row's id and created_at, so re-running a sync
// rewrites values in place.
const upsertBalancesConflict = `
ON CONFLICT (account_id, date, currency) DO UPDATE SET
	balance = EXCLUDED.balance,
	cash_balance = EXCLUDED.cash_balance,
	start_cash_balance = EXCLUDED.start_cash_balance,
	start_non_cash_balance = EXCLUDED.start_non_cash_balance,
	cash_inflows = EXCLUDED.cash_inflows,
	cash_outflows = EXCLUDED.cash_outflows,
	non_cash_inflows = EXCLUDED.non_cash_inflows,
	non_cash_outflows = EXCLUDED.non_cash_outflows,
	net_market_flows = EXCLUDED.net_market_flows,
	cash_adjustments = EXCLUDED.cash_adjustments,
	non_cash_adjustments = EXCLUDED.non_cash_adjustments,
	flows_factor = EXCLUDED.flows_factor,
	updated_at = EXCLUDED.updated_at`

const getLatestBalanceBefore = `SELECT ` + balanceColumns + ` FROM balances
WHERE account_id = $1 AND currency = $2 AND date < $3
ORDER BY date DESC LIMIT 1`

const getBalanceOnOrBefore = `SELECT ` + balanceColumns + ` FROM balances
WHERE account_id = $1 AND currency = $2 AND date <= $3
ORDER BY date DESC LIMIT 1`

const getLatestBalance = `SELECT ` + balanceColumns + ` FROM balances
WHERE account_id = $1 AND currency = $2
ORDER BY date DESC LIMIT 1`

const deleteBalancesOutsideRange = `DELETE FROM balances
WHERE account_id = $1 AND currency = $2 AND (date < $3 OR date > $4)`

const deleteBalancesInRangeExcept = `DELETE FROM balances
WHERE account_id = $1 AND currency = $2 AND date BETWEEN $3 AND $4
	AND NOT (date = ANY($5::date[]))`

const listBalancesByAccount = `SELECT ` + balanceColumns + ` FROM balances
WHERE account_id = $1 AND currency = $2 AND date BETWEEN $3 AND $4
ORDER BY date`

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	db    dbtx
	idGen usecase.IDGenerator
	now   func() time.Time
}

// NewBalanceRepository creates a new BalanceRepository. idGen mints ids for
// rows inserted for the first time.
func NewBalanceRepository(pool *pgxpool.Pool, idGen usecase.IDGenerator) *BalanceRepository {
	return &BalanceRepository{db: pool, idGen: idGen, now: time.Now}
}

// GetLatestBefore returns the latest row dated strictly before date.
func (r *BalanceRepository) GetLatestBefore(ctx context.Context, tx usecase.Transaction, accountID, currency string, date time.Time) (*domain.Balance, error) {
	return scanBalance(queriesFor(r.db, tx).QueryRow(ctx, getLatestBalanceBefore, accountID, currency, timeToPgDate(date)))
}

// GetOnOrBefore returns the row on date, or the latest row before it.
func (r *BalanceRepository) GetOnOrBefore(ctx context.Context, tx usecase.Transaction, accountID, currency string, date time.Time) (*domain.Balance, error) {
	return scanBalance(queriesFor(r.db, tx).QueryRow(ctx, getBalanceOnOrBefore, accountID, currency, timeToPgDate(date)))
}

// GetLatest returns the newest row for the account and currency.
func (r *BalanceRepository) GetLatest(ctx context.Context, tx usecase.Transaction, accountID, currency string) (*domain.Balance, error) {
	return scanBalance(queriesFor(r.db, tx).QueryRow(ctx, getLatestBalance, accountID, currency))
}

// UpsertBatch writes rows in chunks of batchSize, one multi-row INSERT per
// chunk. It returns the number of rows written.
func (r *BalanceRepository) UpsertBatch(ctx context.Context, tx usecase.Transaction, balances []*domain.Balance, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("invalid batch size %d", batchSize)
	}

	q := queriesFor(r.db, tx)
	now := r.now().UTC()
	written := 0

	for start := 0; start < len(balances); start += batchSize {
		end := min(start+batchSize, len(balances))
		sql, args := r.buildUpsert(balances[start:end], now)

		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return written, fmt.Errorf("failed to upsert balances [%d:%d]: %w", start, end, err)
		}
		written += int(tag.RowsAffected())
	}

	return written, nil
}

func (r *BalanceRepository) buildUpsert(chunk []*domain.Balance, now time.Time) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(chunk)*balanceColumnCount)

	sb.WriteString("INSERT INTO balances (")
	sb.WriteString(balanceColumns)
	sb.WriteString(") VALUES ")

	for i, b := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < balanceColumnCount; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*balanceColumnCount+c+1)
		}
		sb.WriteByte(')')

		id := b.ID
		if id == "" {
			id = r.idGen.Generate()
		}
		args = append(args,
			id,
			b.AccountID,
			timeToPgDate(b.Date),
			b.Currency,
			decimalToNumeric(b.Balance),
			decimalToNumeric(b.CashBalance),
			decimalToNumeric(b.StartCashBalance),
			decimalToNumeric(b.StartNonCashBalance),
			decimalToNumeric(b.CashInflows),
			decimalToNumeric(b.CashOutflows),
			decimalToNumeric(b.NonCashInflows),
			decimalToNumeric(b.NonCashOutflows),
			decimalToNumeric(b.NetMarketFlows),
			decimalToNumeric(b.CashAdjustments),
			decimalToNumeric(b.NonCashAdjustments),
			int16(b.FlowsFactor),
			timeToPgTimestamptz(now),
			timeToPgTimestamptz(now),
		)
	}

	sb.WriteString(upsertBalancesConflict)

	return sb.String(), args
}

// DeleteOutsideRange removes rows dated before from or after to.
func (r *BalanceRepository) DeleteOutsideRange(ctx context.Context, tx usecase.Transaction, accountID, currency string, from, to time.Time) (int64, error) {
	tag, err := queriesFor(r.db, tx).Exec(ctx, deleteBalancesOutsideRange,
		accountID, currency, timeToPgDate(from), timeToPgDate(to))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteInRangeExcept removes rows within [from, to] whose date is not in keep.
func (r *BalanceRepository) DeleteInRangeExcept(ctx context.Context, tx usecase.Transaction, accountID, currency string, from, to time.Time, keep []time.Time) (int64, error) {
	dates := make([]pgtype.Date, 0, len(keep))
	for _, d := range keep {
		dates = append(dates, timeToPgDate(d))
	}

	tag, err := queriesFor(r.db, tx).Exec(ctx, deleteBalancesInRangeExcept,
		accountID, currency, timeToPgDate(from), timeToPgDate(to), dates)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByAccount returns rows dated within [from, to], oldest first.
func (r *BalanceRepository) ListByAccount(ctx context.Context, accountID, currency string, from, to time.Time) ([]*domain.Balance, error) {
	rows, err := r.db.Query(ctx, listBalancesByAccount, accountID, currency, timeToPgDate(from), timeToPgDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*domain.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}

	return balances, rows.Err()
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var (
		b           domain.Balance
		date        pgtype.Date
		flowsFactor int16
		numerics    [11]pgtype.Numeric
	)

	err := row.Scan(
		&b.ID, &b.AccountID, &date, &b.Currency,
		&numerics[0], &numerics[1], &numerics[2], &numerics[3], &numerics[4], &numerics[5],
		&numerics[6], &numerics[7], &numerics[8], &numerics[9], &numerics[10],
		&flowsFactor, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, err
	}

	b.Date = pgDateToTime(date)
	b.Balance = numericToDecimal(numerics[0])
	b.CashBalance = numericToDecimal(numerics[1])
	b.StartCashBalance = numericToDecimal(numerics[2])
	b.StartNonCashBalance = numericToDecimal(numerics[3])
	b.CashInflows = numericToDecimal(numerics[4])
	b.CashOutflows = numericToDecimal(numerics[5])
	b.NonCashInflows = numericToDecimal(numerics[6])
	b.NonCashOutflows = numericToDecimal(numerics[7])
	b.NetMarketFlows = numericToDecimal(numerics[8])
	b.CashAdjustments = numericToDecimal(numerics[9])
	b.NonCashAdjustments = numericToDecimal(numerics[10])
	b.FlowsFactor = int(flowsFactor)

	return &b, nil
}
