package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const createTransfer = `INSERT INTO transfers (id, from_account_id, to_account_id, amount, currency, kind, date, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const getTransferByID = `SELECT id, from_account_id, to_account_id, amount, currency, kind, date, metadata, created_at
FROM transfers WHERE id = $1`

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	db dbtx
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{db: pool}
}

// Create creates a new transfer.
func (r *TransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	var metadata []byte
	if transfer.Metadata != nil {
		var err error

		metadata, err = json.Marshal(transfer.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := queriesFor(r.db, tx).Exec(ctx, createTransfer,
		transfer.ID,
		transfer.FromAccountID,
		transfer.ToAccountID,
		decimalToNumeric(transfer.Amount),
		transfer.Currency,
		string(transfer.Kind),
		timeToPgDate(transfer.Date),
		metadata,
		timeToPgTimestamptz(transfer.CreatedAt),
	)

	return err
}

// GetByID retrieves a transfer by ID.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	var (
		t        domain.Transfer
		amount   pgtype.Numeric
		kind     string
		date     pgtype.Date
		metadata []byte
	)

	err := r.db.QueryRow(ctx, getTransferByID, id).Scan(
		&t.ID, &t.FromAccountID, &t.ToAccountID, &amount, &t.Currency, &kind, &date, &metadata, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}

		return nil, err
	}

	if metadata != nil {
		_ = json.Unmarshal(metadata, &t.Metadata)
	}
	t.Amount = numericToDecimal(amount)
	t.Kind = domain.TransferKind(kind)
	t.Date = pgDateToTime(date)

	return &t, nil
}
