package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// ReconciliationUseCase handles balance and loan plan reconciliation
type ReconciliationUseCase struct {
	accountRepo     AccountRepository
	balanceRepo     BalanceRepository
	loanRepo        LoanRepository
	installmentRepo InstallmentRepository
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	accountRepo AccountRepository,
	balanceRepo BalanceRepository,
	loanRepo LoanRepository,
	installmentRepo InstallmentRepository,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		accountRepo:     accountRepo,
		balanceRepo:     balanceRepo,
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount compares the account's cached balance with its latest
// materialized balance row. An account with no rows reconciles against its
// opening balance.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	calculated := account.OpeningBalance
	latest, err := uc.balanceRepo.GetLatest(ctx, nil, account.ID, account.Currency)
	switch {
	case err == nil:
		calculated = latest.Balance
	case !errors.Is(err, domain.ErrBalanceNotFound):
		return nil, err
	}

	diff := account.Balance.Sub(calculated)
	return &ReconciliationResult{
		AccountID:         accountID,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        diff,
		IsReconciled:      diff.IsZero(),
		LastChecked:       time.Now().UTC(),
	}, nil
}

// ReconcileAllAccounts reconciles all accounts in the system
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	// Get all accounts (use high limit for reconciliation)
	limit, offset, _ := domain.ValidatePagination(10000, 0)
	accounts, err := uc.accountRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	results := make([]*ReconciliationResult, 0, len(accounts))
	for _, account := range accounts {
		result, err := uc.ReconcileAccount(ctx, account.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile account %s: %w", account.ID, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// LoanReconciliation reports whether a loan's plan still accounts for all of
// its principal.
type LoanReconciliation struct {
	LoanID             string
	Principal          decimal.Decimal
	PlannedPrincipal   decimal.Decimal
	ExtraPrincipalPaid decimal.Decimal
	Difference         decimal.Decimal
	IsReconciled       bool
}

// ReconcileLoan checks that the principal of non-cancelled installments plus
// extra principal paid equals the loan principal within one minor unit.
func (uc *ReconciliationUseCase) ReconcileLoan(ctx context.Context, loanID string) (*LoanReconciliation, error) {
	loan, err := uc.loanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	installments, err := uc.installmentRepo.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	planned := decimal.Zero
	for _, i := range installments {
		if i.Status != domain.InstallmentCancelled {
			planned = planned.Add(i.PrincipalAmount)
		}
	}

	diff := loan.Principal.Sub(planned.Add(loan.ExtraPrincipalPaid))
	return &LoanReconciliation{
		LoanID:             loan.ID,
		Principal:          loan.Principal,
		PlannedPrincipal:   planned,
		ExtraPrincipalPaid: loan.ExtraPrincipalPaid,
		Difference:         diff,
		IsReconciled:       diff.Abs().LessThanOrEqual(domain.MinorUnit(loan.Currency)),
	}, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalAccounts: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
