package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const accountColumns = `id, name, currency, kind, balance, cash_balance, opening_balance, opening_date,
	current_anchor_balance, current_anchor_date, version, created_at, updated_at`

const createAccount = `INSERT INTO accounts (` + accountColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const getAccountByID = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

const getAccountByIDForUpdate = getAccountByID + ` FOR UPDATE`

const updateAccountBalances = `UPDATE accounts
SET balance = $2, cash_balance = $3, updated_at = $4, version = version + 1
WHERE id = $1`

const listAccounts = `SELECT ` + accountColumns + ` FROM accounts ORDER BY id LIMIT $1 OFFSET $2`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db dbtx
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: pool}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	_, err := queriesFor(r.db, tx).Exec(ctx, createAccount,
		account.ID,
		account.Name,
		account.Currency,
		string(account.Kind),
		decimalToNumeric(account.Balance),
		decimalToNumeric(account.CashBalance),
		decimalToNumeric(account.OpeningBalance),
		timeToPgDate(account.OpeningDate),
		decimalPtrToNumeric(account.CurrentAnchorBalance),
		timePtrToPgDate(account.CurrentAnchorDate),
		account.Version,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)
	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, getAccountByID, id))
}

// GetByIDForUpdate retrieves an account with a FOR UPDATE lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	return scanAccount(queriesFor(r.db, tx).QueryRow(ctx, getAccountByIDForUpdate, id))
}

// UpdateBalances stores the cached current balance and cash balance.
func (r *AccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, id string, balance, cashBalance decimal.Decimal, updatedAt time.Time) error {
	tag, err := queriesFor(r.db, tx).Exec(ctx, updateAccountBalances,
		id,
		decimalToNumeric(balance),
		decimalToNumeric(cashBalance),
		timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// List lists accounts with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, listAccounts, int32(limit), int32(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                                     domain.Account
		kind                                  string
		balance, cash, opening, anchorBalance pgtype.Numeric
		openingDate, anchorDate               pgtype.Date
	)

	err := row.Scan(
		&a.ID, &a.Name, &a.Currency, &kind,
		&balance, &cash, &opening, &openingDate,
		&anchorBalance, &anchorDate,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	a.Kind = domain.AccountKind(kind)
	a.Balance = numericToDecimal(balance)
	a.CashBalance = numericToDecimal(cash)
	a.OpeningBalance = numericToDecimal(opening)
	a.OpeningDate = pgDateToTime(openingDate)
	a.CurrentAnchorBalance = numericToDecimalPtr(anchorBalance)
	a.CurrentAnchorDate = pgDateToTimePtr(anchorDate)

	return &a, nil
}
