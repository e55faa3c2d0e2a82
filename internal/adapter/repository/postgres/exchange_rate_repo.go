package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// The newest rate on or before the date is used, so weekends and holidays
// carry the last fixing forward.
const getExchangeRate = `SELECT rate FROM exchange_rates
WHERE from_currency = $1 AND to_currency = $2 AND date <= $3
ORDER BY date DESC LIMIT 1`

const upsertExchangeRate = `INSERT INTO exchange_rates (from_currency, to_currency, date, rate)
VALUES ($1, $2, $3, $4)
ON CONFLICT (from_currency, to_currency, date) DO UPDATE SET rate = EXCLUDED.rate`

// ExchangeRateRepository implements usecase.ExchangeRateProvider on the
// exchange_rates table.
type ExchangeRateRepository struct {
	db dbtx
}

// NewExchangeRateRepository creates a new ExchangeRateRepository.
func NewExchangeRateRepository(pool *pgxpool.Pool) *ExchangeRateRepository {
	return &ExchangeRateRepository{db: pool}
}

// Rate returns the rate converting one unit of from into to on date.
func (r *ExchangeRateRepository) Rate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	var rate pgtype.Numeric
	err := r.db.QueryRow(ctx, getExchangeRate, from, to, timeToPgDate(date)).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s/%s on %s", domain.ErrMissingExchangeRate, from, to, domain.FormatDate(date))
		}
		return decimal.Zero, err
	}

	return numericToDecimal(rate), nil
}

// Save stores a rate fixing for a day, replacing any earlier one.
func (r *ExchangeRateRepository) Save(ctx context.Context, from, to string, date time.Time, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return domain.ErrInvalidAmount
	}
	_, err := r.db.Exec(ctx, upsertExchangeRate, from, to, timeToPgDate(date), decimalToNumeric(rate))
	return err
}
