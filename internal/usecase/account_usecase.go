package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	scheduler   SyncScheduler
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	scheduler SyncScheduler,
	metrics *metrics.Metrics,
) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		scheduler:   scheduler,
		metrics:     metrics,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Name                 string
	Currency             string
	Kind                 domain.AccountKind
	OpeningBalance       decimal.Decimal
	OpeningDate          time.Time
	CurrentAnchorBalance *decimal.Decimal
	CurrentAnchorDate    *time.Time
}

// CreateAccount creates a new account and queues its first full balance sync.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	account := &domain.Account{
		ID:                   uc.idGen.Generate(),
		Name:                 input.Name,
		Currency:             input.Currency,
		Kind:                 input.Kind,
		Balance:              input.OpeningBalance,
		OpeningBalance:       input.OpeningBalance,
		OpeningDate:          domain.DateOf(input.OpeningDate),
		CurrentAnchorBalance: input.CurrentAnchorBalance,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if input.CurrentAnchorDate != nil {
		d := domain.DateOf(*input.CurrentAnchorDate)
		account.CurrentAnchorDate = &d
	}
	if account.Kind.BalanceType() == domain.BalanceTypeCash {
		account.CashBalance = input.OpeningBalance
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, err
	}

	event := domain.AccountCreatedEvent{
		AccountID: account.ID,
		Name:      account.Name,
		Kind:      string(account.Kind),
		Currency:  account.Currency,
	}
	if err := writeEvent(ctx, tx, uc.outboxRepo, uc.idGen,
		domain.AggregateTypeAccount, account.ID, domain.EventTypeAccountCreated, event, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	if uc.scheduler != nil {
		strategy := domain.SyncStrategyForward
		if account.IsLinked() {
			strategy = domain.SyncStrategyReverse
		}
		// Best effort: the next entry on the account schedules another sync.
		_ = uc.scheduler.ScheduleSync(ctx, SyncRequest{AccountID: account.ID, Strategy: strategy, Reason: "account_created"})
	}

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = DefaultPageSize
	}
	if input.Limit > MaxPageSize {
		input.Limit = MaxPageSize
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	return uc.accountRepo.List(ctx, input.Limit, input.Offset)
}
