package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
)

// LoanDeps wires the loan use cases. Scheduler, Outbox and Metrics are optional.
type LoanDeps struct {
	TxManager    TransactionManager
	Retrier      Retrier
	Accounts     AccountRepository
	Loans        LoanRepository
	Installments InstallmentRepository
	Transfers    TransferRepository
	Entries      EntryRepository
	Outbox       OutboxRepository
	IDGen        IDGenerator
	Scheduler    SyncScheduler
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	Clock        Clock
}

func (d LoanDeps) now() time.Time {
	if d.Clock != nil {
		return d.Clock().UTC()
	}
	return time.Now().UTC()
}

func (d LoanDeps) booker() transferBooker {
	return transferBooker{transferRepo: d.Transfers, entryRepo: d.Entries, idGen: d.IDGen}
}

// retry runs op through the configured retrier, or once without one.
func (d LoanDeps) retry(ctx context.Context, op func() error) error {
	if d.Retrier == nil {
		return op()
	}
	return d.Retrier.Retry(ctx, op)
}

// scheduleSyncs queues a windowed balance sync from date for each account.
// Failures are logged; the money movement is already committed.
func (d LoanDeps) scheduleSyncs(ctx context.Context, date time.Time, reason string, accountIDs ...string) {
	if d.Scheduler == nil {
		return
	}

	start := domain.DateOf(date)
	for _, id := range accountIDs {
		req := SyncRequest{
			AccountID:   id,
			Strategy:    domain.SyncStrategyForward,
			WindowStart: &start,
			Reason:      reason,
		}
		if err := d.Scheduler.ScheduleSync(ctx, req); err != nil {
			d.Logger.Warn().Err(err).Str("account_id", id).Str("reason", reason).Msg("failed to schedule balance sync")
		}
	}
}

// LoanScheduleUseCase previews schedules and books loans with their plan.
type LoanScheduleUseCase struct {
	deps LoanDeps
}

// NewLoanScheduleUseCase creates a new LoanScheduleUseCase.
func NewLoanScheduleUseCase(deps LoanDeps) *LoanScheduleUseCase {
	return &LoanScheduleUseCase{deps: deps}
}

// Preview generates the rows for params without storing anything.
func (uc *LoanScheduleUseCase) Preview(ctx context.Context, params domain.ScheduleParams) ([]domain.ScheduleRow, error) {
	rows, err := domain.GenerateSchedule(params)
	if err != nil {
		return nil, err
	}

	uc.deps.Logger.Info().
		Str("method", string(params.Method)).
		Str("frequency", string(params.Frequency)).
		Int("rows", len(rows)).
		Msg("schedule generated")

	if uc.deps.Metrics != nil {
		uc.deps.Metrics.SchedulesGenerated.WithLabelValues(string(params.Method)).Inc()
	}

	return rows, nil
}

// CreateLoanInput represents input for booking a loan.
type CreateLoanInput struct {
	AccountID        string
	Principal        decimal.Decimal
	AnnualRate       decimal.Decimal
	TenorMonths      int
	Frequency        domain.Frequency
	Method           domain.ScheduleMethod
	StartDate        time.Time
	Balloon          decimal.Decimal
	InterestCategory string
}

// CreateLoan stores a loan against a liability account together with one
// planned installment per generated row.
func (uc *LoanScheduleUseCase) CreateLoan(ctx context.Context, input CreateLoanInput) (*domain.Loan, []*domain.LoanInstallment, error) {
	account, err := uc.deps.Accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, nil, err
	}

	if !account.IsLiability() {
		return nil, nil, domain.ErrLoanAccountNotLiability
	}

	now := uc.deps.now()
	category := input.InterestCategory
	if category == "" {
		category = domain.DefaultInterestCategory
	}

	loan := &domain.Loan{
		ID:               uc.deps.IDGen.Generate(),
		AccountID:        account.ID,
		Principal:        input.Principal,
		AnnualRate:       input.AnnualRate,
		TenorMonths:      input.TenorMonths,
		Frequency:        input.Frequency,
		Method:           input.Method,
		StartDate:        domain.DateOf(input.StartDate),
		BalloonAmount:    input.Balloon,
		Currency:         account.Currency,
		InterestCategory: category,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	rows, err := uc.Preview(ctx, loan.ScheduleParams())
	if err != nil {
		return nil, nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.deps.TxManager.Begin(txCtx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.deps.Loans.Create(txCtx, tx, loan); err != nil {
		return nil, nil, err
	}

	installments := buildInstallments(uc.deps.IDGen, loan, rows, 1, now)
	if err := uc.deps.Installments.CreateBatch(txCtx, tx, installments); err != nil {
		return nil, nil, err
	}

	event := domain.ScheduleGeneratedEvent{
		LoanID:      loan.ID,
		AccountID:   loan.AccountID,
		Principal:   loan.Principal.String(),
		AnnualRate:  loan.AnnualRate.String(),
		TenorMonths: loan.TenorMonths,
		Frequency:   string(loan.Frequency),
		Method:      string(loan.Method),
		Balloon:     loan.BalloonAmount.String(),
		Rows:        len(rows),
	}
	if err := writeEvent(txCtx, tx, uc.deps.Outbox, uc.deps.IDGen,
		domain.AggregateTypeLoan, loan.ID, domain.EventTypeScheduleGenerated, event, now); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, nil, err
	}

	return loan, installments, nil
}

// GetLoan returns a loan and its installments ordered by number.
func (uc *LoanScheduleUseCase) GetLoan(ctx context.Context, id string) (*domain.Loan, []*domain.LoanInstallment, error) {
	loan, err := uc.deps.Loans.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	installments, err := uc.deps.Installments.ListByLoan(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return loan, installments, nil
}

// buildInstallments turns generated rows into planned installments numbered
// from firstNo.
func buildInstallments(idGen IDGenerator, loan *domain.Loan, rows []domain.ScheduleRow, firstNo int, now time.Time) []*domain.LoanInstallment {
	installments := make([]*domain.LoanInstallment, len(rows))
	for i, row := range rows {
		installments[i] = &domain.LoanInstallment{
			ID:              idGen.Generate(),
			LoanID:          loan.ID,
			AccountID:       loan.AccountID,
			InstallmentNo:   firstNo + i,
			DueDate:         row.DueDate,
			PrincipalAmount: row.Principal,
			InterestAmount:  row.Interest,
			FeeAmount:       decimal.Zero,
			TotalAmount:     row.Total,
			Status:          domain.InstallmentPlanned,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	return installments
}
