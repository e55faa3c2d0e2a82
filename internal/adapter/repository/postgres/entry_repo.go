package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const entryColumns = `id, account_id, transfer_id, date, amount, currency, kind, name, category, created_at`

const createEntry = `INSERT INTO entries (` + entryColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const listEntriesByAccountInRange = `SELECT ` + entryColumns + ` FROM entries
WHERE account_id = $1 AND date BETWEEN $2 AND $3
ORDER BY date, created_at, id`

const latestEntryDate = `SELECT MAX(date) FROM entries WHERE account_id = $1`

const getEntriesByTransfer = `SELECT ` + entryColumns + ` FROM entries WHERE transfer_id = $1 ORDER BY id`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db dbtx
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

// Create creates a new entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	_, err := queriesFor(r.db, tx).Exec(ctx, createEntry,
		entry.ID,
		entry.AccountID,
		stringPtrToText(entry.TransferID),
		timeToPgDate(entry.Date),
		decimalToNumeric(entry.Amount),
		entry.Currency,
		string(entry.Kind),
		entry.Name,
		entry.Category,
		timeToPgTimestamptz(entry.CreatedAt),
	)
	return err
}

// ListByAccountInRange returns an account's entries dated within [from, to],
// oldest first.
func (r *EntryRepository) ListByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx, listEntriesByAccountInRange, accountID, timeToPgDate(from), timeToPgDate(to))
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// LatestDate returns the date of the account's newest entry, or nil.
func (r *EntryRepository) LatestDate(ctx context.Context, accountID string) (*time.Time, error) {
	var latest pgtype.Date
	if err := r.db.QueryRow(ctx, latestEntryDate, accountID).Scan(&latest); err != nil {
		return nil, err
	}
	return pgDateToTimePtr(latest), nil
}

// GetByTransfer retrieves entries by transfer ID.
func (r *EntryRepository) GetByTransfer(ctx context.Context, transferID string) ([]*domain.Entry, error) {
	rows, err := r.db.Query(ctx, getEntriesByTransfer, transferID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	defer rows.Close()

	var entries []*domain.Entry
	for rows.Next() {
		var (
			e          domain.Entry
			transferID pgtype.Text
			date       pgtype.Date
			amount     pgtype.Numeric
			kind       string
		)
		err := rows.Scan(&e.ID, &e.AccountID, &transferID, &date, &amount,
			&e.Currency, &kind, &e.Name, &e.Category, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.TransferID = textToStringPtr(transferID)
		e.Date = pgDateToTime(date)
		e.Amount = numericToDecimal(amount)
		e.Kind = domain.EntryKind(kind)
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
