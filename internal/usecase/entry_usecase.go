package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
)

// EntryUseCase handles entry business logic and balance reads.
type EntryUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	entryRepo   EntryRepository
	balanceRepo BalanceRepository
	idGen       IDGenerator
	scheduler   SyncScheduler
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	balanceRepo BalanceRepository,
	idGen IDGenerator,
	scheduler SyncScheduler,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *EntryUseCase {
	return &EntryUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		balanceRepo: balanceRepo,
		idGen:       idGen,
		scheduler:   scheduler,
		metrics:     metrics,
		logger:      logger,
	}
}

// RecordEntryInput represents input for recording a ledger line.
type RecordEntryInput struct {
	AccountID string
	Date      time.Time
	Amount    decimal.Decimal
	Currency  string
	Kind      domain.EntryKind
	Name      string
	Category  string
}

// RecordEntry stores an entry and queues a balance sync from its date.
func (uc *EntryUseCase) RecordEntry(ctx context.Context, input RecordEntryInput) (*domain.Entry, error) {
	account, err := uc.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = account.Currency
	}

	entry := &domain.Entry{
		ID:        uc.idGen.Generate(),
		AccountID: account.ID,
		Date:      domain.DateOf(input.Date),
		Amount:    input.Amount,
		Currency:  currency,
		Kind:      input.Kind,
		Name:      input.Name,
		Category:  input.Category,
		CreatedAt: time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesRecorded.WithLabelValues(string(entry.Kind)).Inc()
	}

	if uc.scheduler != nil {
		start := entry.Date
		// The entry is committed; a missed sync is repaired by the next one.
		if err := uc.scheduler.ScheduleSync(ctx, SyncRequest{
			AccountID:   account.ID,
			Strategy:    domain.SyncStrategyForward,
			WindowStart: &start,
			Reason:      "entry_recorded",
		}); err != nil {
			uc.logger.Warn().Err(err).Str("account_id", account.ID).Str("reason", "entry_recorded").Msg("failed to schedule balance sync")
		}
	}

	return entry, nil
}

// ListEntriesInput selects entries by account and date range.
type ListEntriesInput struct {
	AccountID string
	From      time.Time
	To        time.Time
}

// ListEntries lists entries for an account within [From, To].
func (uc *EntryUseCase) ListEntries(ctx context.Context, input ListEntriesInput) ([]*domain.Entry, error) {
	if err := domain.ValidateWindow(&input.From, &input.To); err != nil {
		return nil, err
	}
	return uc.entryRepo.ListByAccountInRange(ctx, input.AccountID, domain.DateOf(input.From), domain.DateOf(input.To))
}

// GetEntriesByTransfer lists entries for a transfer.
func (uc *EntryUseCase) GetEntriesByTransfer(ctx context.Context, transferID string) ([]*domain.Entry, error) {
	return uc.entryRepo.GetByTransfer(ctx, transferID)
}

// ListBalances returns materialized balance rows for an account within [from, to].
func (uc *EntryUseCase) ListBalances(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Balance, error) {
	if err := domain.ValidateWindow(&from, &to); err != nil {
		return nil, err
	}

	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return uc.balanceRepo.ListByAccount(ctx, account.ID, account.Currency, domain.DateOf(from), domain.DateOf(to))
}

// GetHistoricalBalance returns the end-of-day balance at a date, taken from the
// latest materialized row on or before it. Before the first row it is zero.
func (uc *EntryUseCase) GetHistoricalBalance(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	row, err := uc.balanceRepo.GetOnOrBefore(ctx, nil, account.ID, account.Currency, domain.DateOf(at))
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	return row.Balance, nil
}
