package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	UpdateBalances(ctx context.Context, tx Transaction, id string, balance, cashBalance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	ListByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Entry, error)
	LatestDate(ctx context.Context, accountID string) (*time.Time, error)
	GetByTransfer(ctx context.Context, transferID string) ([]*domain.Entry, error)
}

// HoldingRepository defines read access for materialized holdings.
type HoldingRepository interface {
	ListByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Holding, error)
	LatestDate(ctx context.Context, accountID string) (*time.Time, error)
}

// BalanceRepository defines data access for materialized balance rows.
// Lookups that find nothing return domain.ErrBalanceNotFound.
type BalanceRepository interface {
	// GetLatestBefore returns the latest row dated strictly before date.
	GetLatestBefore(ctx context.Context, tx Transaction, accountID, currency string, date time.Time) (*domain.Balance, error)
	// GetOnOrBefore returns the row on date, or the latest row before it.
	GetOnOrBefore(ctx context.Context, tx Transaction, accountID, currency string, date time.Time) (*domain.Balance, error)
	GetLatest(ctx context.Context, tx Transaction, accountID, currency string) (*domain.Balance, error)
	// UpsertBatch writes rows keyed by (account_id, date, currency) in chunks of batchSize.
	UpsertBatch(ctx context.Context, tx Transaction, balances []*domain.Balance, batchSize int) (int, error)
	DeleteOutsideRange(ctx context.Context, tx Transaction, accountID, currency string, from, to time.Time) (int64, error)
	DeleteInRangeExcept(ctx context.Context, tx Transaction, accountID, currency string, from, to time.Time, keep []time.Time) (int64, error)
	ListByAccount(ctx context.Context, accountID, currency string, from, to time.Time) ([]*domain.Balance, error)
}

// LoanRepository defines data access for loans.
type LoanRepository interface {
	Create(ctx context.Context, tx Transaction, loan *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Loan, error)
	Update(ctx context.Context, tx Transaction, loan *domain.Loan) error
}

// InstallmentRepository defines data access for loan installments.
type InstallmentRepository interface {
	CreateBatch(ctx context.Context, tx Transaction, installments []*domain.LoanInstallment) error
	GetByID(ctx context.Context, id string) (*domain.LoanInstallment, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LoanInstallment, error)
	ListByLoan(ctx context.Context, loanID string) ([]*domain.LoanInstallment, error)
	ListByLoanForUpdate(ctx context.Context, tx Transaction, loanID string) ([]*domain.LoanInstallment, error)
	Update(ctx context.Context, tx Transaction, installment *domain.LoanInstallment) error
}

// TransferRepository defines data access for transfers.
type TransferRepository interface {
	Create(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id string) (*domain.Transfer, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// ExchangeRateProvider looks up the rate converting one unit of from into to
// on date. It returns domain.ErrMissingExchangeRate when no rate is known.
type ExchangeRateProvider interface {
	Rate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error)
}

// AccountLocker is a non-blocking, non-reentrant mutex keyed by string.
// TryAcquire hands out a token identifying the acquisition; Release only
// frees the lock while that token still holds it.
type AccountLocker interface {
	TryAcquire(ctx context.Context, key string) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
}

// SyncNotifier delivers user-facing sync notices.
type SyncNotifier interface {
	NotifySyncDowngraded(ctx context.Context, notice domain.SyncNotice) error
}

// HoldingsMaterializer refreshes holdings for investment accounts ahead of a
// balance calculation.
type HoldingsMaterializer interface {
	MaterializeHoldings(ctx context.Context, tx Transaction, account *domain.Account) error
}

// SyncRequest asks for an account's balances to be materialized.
type SyncRequest struct {
	AccountID   string
	Strategy    domain.SyncStrategy
	WindowStart *time.Time
	WindowEnd   *time.Time
	Reason      string
}

// SyncScheduler queues balance syncs to run outside the caller's transaction.
type SyncScheduler interface {
	ScheduleSync(ctx context.Context, req SyncRequest) error
}

// Retrier re-runs operations that failed with transient database errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock returns the current time. Injected so "today" is testable.
type Clock func() time.Time

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
