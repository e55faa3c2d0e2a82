package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const listHoldingsByAccountInRange = `SELECT id, account_id, security_id, date, quantity, price, amount, currency
FROM holdings
WHERE account_id = $1 AND date BETWEEN $2 AND $3
ORDER BY date, security_id`

const latestHoldingDate = `SELECT MAX(date) FROM holdings WHERE account_id = $1`

// Positions are revalued at their recorded price so amount never drifts from
// quantity * price.
const revalueHoldings = `UPDATE holdings
SET amount = ROUND(quantity * price, 8)
WHERE account_id = $1 AND amount <> ROUND(quantity * price, 8)`

// HoldingRepository implements usecase.HoldingRepository and
// usecase.HoldingsMaterializer.
type HoldingRepository struct {
	db dbtx
}

// NewHoldingRepository creates a new HoldingRepository.
func NewHoldingRepository(pool *pgxpool.Pool) *HoldingRepository {
	return &HoldingRepository{db: pool}
}

// ListByAccountInRange returns holdings dated within [from, to].
func (r *HoldingRepository) ListByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Holding, error) {
	rows, err := r.db.Query(ctx, listHoldingsByAccountInRange, accountID, timeToPgDate(from), timeToPgDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []*domain.Holding
	for rows.Next() {
		var (
			h                       domain.Holding
			date                    pgtype.Date
			quantity, price, amount pgtype.Numeric
		)
		if err := rows.Scan(&h.ID, &h.AccountID, &h.SecurityID, &date, &quantity, &price, &amount, &h.Currency); err != nil {
			return nil, err
		}
		h.Date = pgDateToTime(date)
		h.Quantity = numericToDecimal(quantity)
		h.Price = numericToDecimal(price)
		h.Amount = numericToDecimal(amount)
		holdings = append(holdings, &h)
	}

	return holdings, rows.Err()
}

// LatestDate returns the newest holding date for the account, or nil.
func (r *HoldingRepository) LatestDate(ctx context.Context, accountID string) (*time.Time, error) {
	var latest pgtype.Date
	if err := r.db.QueryRow(ctx, latestHoldingDate, accountID).Scan(&latest); err != nil {
		return nil, err
	}
	return pgDateToTimePtr(latest), nil
}

// MaterializeHoldings refreshes the stored market value of every position on
// the account inside the materializer's transaction.
func (r *HoldingRepository) MaterializeHoldings(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	_, err := queriesFor(r.db, tx).Exec(ctx, revalueHoldings, account.ID)
	return err
}
