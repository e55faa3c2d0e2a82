package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// LoanPaymentUseCase handles principal movements outside the regular plan.
type LoanPaymentUseCase struct {
	deps LoanDeps
}

// NewLoanPaymentUseCase creates a new LoanPaymentUseCase.
func NewLoanPaymentUseCase(deps LoanDeps) *LoanPaymentUseCase {
	return &LoanPaymentUseCase{deps: deps}
}

// ExtraPaymentInput represents an unscheduled principal repayment.
type ExtraPaymentInput struct {
	LoanID          string
	SourceAccountID string
	Amount          decimal.Decimal
	Date            *time.Time
	Allocation      domain.ExtraPaymentAllocation
}

// BorrowingInput represents additional principal drawn on an existing loan.
type BorrowingInput struct {
	LoanID               string
	DestinationAccountID string
	Amount               decimal.Decimal
	Date                 *time.Time
}

// LoanPaymentResult describes the effect on the plan.
type LoanPaymentResult struct {
	Loan         *domain.Loan
	Transfer     *domain.Transfer
	Outstanding  decimal.Decimal
	Cancelled    int
	Regenerated  int
	Installments []*domain.LoanInstallment
}

// ExtraPayment books an extra principal payment and adjusts the open part of
// the plan. principal_first trims principal from the last installment
// backwards; schedule_reduction re-amortizes the remaining periods.
func (uc *LoanPaymentUseCase) ExtraPayment(ctx context.Context, input ExtraPaymentInput) (*LoanPaymentResult, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	allocation, err := domain.ParseExtraPaymentAllocation(string(input.Allocation))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var result *LoanPaymentResult
	err = uc.deps.retry(ctx, func() error {
		var err error
		result, err = uc.extraPayment(ctx, input, allocation)
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.deps.Metrics != nil {
		uc.deps.Metrics.ExtraPayments.WithLabelValues(string(allocation)).Inc()
		uc.deps.Metrics.PostingDuration.Observe(time.Since(start).Seconds())
	}

	uc.deps.Logger.Info().
		Str("loan_id", input.LoanID).
		Str("amount", input.Amount.String()).
		Str("allocation", string(allocation)).
		Int("cancelled", result.Cancelled).
		Int("regenerated", result.Regenerated).
		Msg("extra loan payment booked")

	uc.deps.scheduleSyncs(ctx, result.Transfer.Date, "loan_extra_payment", input.SourceAccountID, result.Loan.AccountID)

	return result, nil
}

func (uc *LoanPaymentUseCase) extraPayment(ctx context.Context, input ExtraPaymentInput, allocation domain.ExtraPaymentAllocation) (*LoanPaymentResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.deps.TxManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	plan, err := uc.lockPlan(txCtx, tx, input.LoanID)
	if err != nil {
		return nil, err
	}

	if input.Amount.GreaterThan(plan.outstanding) {
		return nil, fmt.Errorf("%w: outstanding %s", domain.ErrExtraPaymentExceedsPrincipal, plan.outstanding)
	}

	source, err := uc.deps.Accounts.GetByID(txCtx, input.SourceAccountID)
	if err != nil {
		return nil, err
	}

	now := uc.deps.now()
	date := dateOr(input.Date, now)

	transfer, err := uc.deps.booker().book(txCtx, tx, bookTransferInput{
		From:     source,
		To:       plan.account,
		Amount:   input.Amount,
		Date:     date,
		Kind:     domain.TransferKindExtraPayment,
		Name:     "Loan extra payment",
		Metadata: map[string]any{"loan_id": plan.loan.ID, "allocation": string(allocation)},
	}, now)
	if err != nil {
		return nil, err
	}

	plan.loan.ExtraPrincipalPaid = plan.loan.ExtraPrincipalPaid.Add(input.Amount)
	plan.loan.UpdatedAt = now
	if err := uc.deps.Loans.Update(txCtx, tx, plan.loan); err != nil {
		return nil, err
	}

	result := &LoanPaymentResult{Loan: plan.loan, Transfer: transfer}
	remaining := plan.outstanding.Sub(input.Amount)

	switch allocation {
	case domain.AllocationPrincipalFirst:
		err = uc.reduceFromLast(txCtx, tx, plan, input.Amount, now, result)
	case domain.AllocationScheduleReduction:
		err = uc.reamortize(txCtx, tx, plan, remaining, now, result)
	}
	if err != nil {
		return nil, err
	}
	result.Outstanding = remaining

	event := domain.LoanPaymentEvent{
		LoanID:         plan.loan.ID,
		TransferID:     transfer.ID,
		Amount:         input.Amount.String(),
		Allocation:     string(allocation),
		Outstanding:    remaining.String(),
		Cancelled:      result.Cancelled,
		Regenerated:    result.Regenerated,
		EffectiveOnDay: domain.FormatDate(transfer.Date),
	}
	if err := writeEvent(txCtx, tx, uc.deps.Outbox, uc.deps.IDGen,
		domain.AggregateTypeLoan, plan.loan.ID, domain.EventTypeLoanExtraPayment, event, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return result, nil
}

// AdditionalBorrowing draws more principal from the loan into the destination
// account and re-amortizes the open installments over the larger balance.
func (uc *LoanPaymentUseCase) AdditionalBorrowing(ctx context.Context, input BorrowingInput) (*LoanPaymentResult, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *LoanPaymentResult
	err := uc.deps.retry(ctx, func() error {
		var err error
		result, err = uc.borrow(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.deps.Metrics != nil {
		uc.deps.Metrics.Borrowings.Inc()
		uc.deps.Metrics.PostingDuration.Observe(time.Since(start).Seconds())
	}

	uc.deps.Logger.Info().
		Str("loan_id", input.LoanID).
		Str("amount", input.Amount.String()).
		Int("regenerated", result.Regenerated).
		Msg("additional borrowing booked")

	uc.deps.scheduleSyncs(ctx, result.Transfer.Date, "loan_borrowing", result.Loan.AccountID, input.DestinationAccountID)

	return result, nil
}

func (uc *LoanPaymentUseCase) borrow(ctx context.Context, input BorrowingInput) (*LoanPaymentResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.deps.TxManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	plan, err := uc.lockPlan(txCtx, tx, input.LoanID)
	if err != nil {
		return nil, err
	}

	destination, err := uc.deps.Accounts.GetByID(txCtx, input.DestinationAccountID)
	if err != nil {
		return nil, err
	}

	now := uc.deps.now()
	date := dateOr(input.Date, now)

	transfer, err := uc.deps.booker().book(txCtx, tx, bookTransferInput{
		From:     plan.account,
		To:       destination,
		Amount:   input.Amount,
		Date:     date,
		Kind:     domain.TransferKindBorrowing,
		Name:     "Loan additional borrowing",
		Metadata: map[string]any{"loan_id": plan.loan.ID},
	}, now)
	if err != nil {
		return nil, err
	}

	plan.loan.Principal = plan.loan.Principal.Add(input.Amount)
	plan.loan.UpdatedAt = now
	if err := uc.deps.Loans.Update(txCtx, tx, plan.loan); err != nil {
		return nil, err
	}

	result := &LoanPaymentResult{Loan: plan.loan, Transfer: transfer}
	outstanding := plan.outstanding.Add(input.Amount)
	if err := uc.reamortize(txCtx, tx, plan, outstanding, now, result); err != nil {
		return nil, err
	}
	result.Outstanding = outstanding

	event := domain.LoanPaymentEvent{
		LoanID:         plan.loan.ID,
		TransferID:     transfer.ID,
		Amount:         input.Amount.String(),
		Outstanding:    outstanding.String(),
		Cancelled:      result.Cancelled,
		Regenerated:    result.Regenerated,
		EffectiveOnDay: domain.FormatDate(transfer.Date),
	}
	if err := writeEvent(txCtx, tx, uc.deps.Outbox, uc.deps.IDGen,
		domain.AggregateTypeLoan, plan.loan.ID, domain.EventTypeLoanBorrowing, event, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return result, nil
}

// lockedPlan is a loan with its installments, read under row locks.
type lockedPlan struct {
	loan        *domain.Loan
	account     *domain.Account
	all         []*domain.LoanInstallment
	open        []*domain.LoanInstallment
	outstanding decimal.Decimal
}

// isOpen reports whether an installment's principal can still be moved.
// Partially paid rows keep their principal.
func isOpen(i *domain.LoanInstallment) bool {
	switch i.Status {
	case domain.InstallmentPlanned, domain.InstallmentPending, domain.InstallmentOverdue:
		return true
	}
	return false
}

func (uc *LoanPaymentUseCase) lockPlan(ctx context.Context, tx Transaction, loanID string) (*lockedPlan, error) {
	loan, err := uc.deps.Loans.GetByIDForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}

	account, err := uc.deps.Accounts.GetByID(ctx, loan.AccountID)
	if err != nil {
		return nil, err
	}

	installments, err := uc.deps.Installments.ListByLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	sort.Slice(installments, func(a, b int) bool { return installments[a].InstallmentNo < installments[b].InstallmentNo })

	plan := &lockedPlan{loan: loan, account: account, all: installments, outstanding: decimal.Zero}
	for _, i := range installments {
		if isOpen(i) {
			plan.open = append(plan.open, i)
			plan.outstanding = plan.outstanding.Add(i.PrincipalAmount)
		}
	}

	return plan, nil
}

// reduceFromLast takes amount off the open installments starting from the last.
// Installments left with no principal are cancelled.
func (uc *LoanPaymentUseCase) reduceFromLast(
	ctx context.Context,
	tx Transaction,
	plan *lockedPlan,
	amount decimal.Decimal,
	now time.Time,
	result *LoanPaymentResult,
) error {
	left := amount
	for idx := len(plan.open) - 1; idx >= 0 && left.IsPositive(); idx-- {
		inst := plan.open[idx]

		cut := decimal.Min(left, inst.PrincipalAmount)
		inst.PrincipalAmount = inst.PrincipalAmount.Sub(cut)
		left = left.Sub(cut)

		if inst.PrincipalAmount.IsZero() {
			if err := domain.NewInstallmentFSM(inst).Fire(ctx, domain.EventCancel); err != nil {
				return err
			}
			result.Cancelled++
		}
		inst.RecalculateTotal()
		inst.UpdatedAt = now

		if err := uc.deps.Installments.Update(ctx, tx, inst); err != nil {
			return err
		}
	}

	result.Installments = plan.all
	return nil
}

// reamortize cancels every open installment and, when principal remains,
// generates replacements over the same number of periods. New rows continue
// the numbering and start from the last closed installment's due date.
func (uc *LoanPaymentUseCase) reamortize(
	ctx context.Context,
	tx Transaction,
	plan *lockedPlan,
	principal decimal.Decimal,
	now time.Time,
	result *LoanPaymentResult,
) error {
	for _, inst := range plan.open {
		if err := domain.NewInstallmentFSM(inst).Fire(ctx, domain.EventCancel); err != nil {
			return err
		}
		inst.UpdatedAt = now
		if err := uc.deps.Installments.Update(ctx, tx, inst); err != nil {
			return err
		}
		result.Cancelled++
	}

	if !principal.IsPositive() {
		result.Installments = plan.all
		return nil
	}

	start := plan.loan.StartDate
	maxNo := 0
	for _, inst := range plan.all {
		if inst.InstallmentNo > maxNo {
			maxNo = inst.InstallmentNo
		}
		if inst.Status != domain.InstallmentCancelled && !isOpen(inst) && inst.DueDate.After(start) {
			start = inst.DueDate
		}
	}

	periods := len(plan.open)
	if periods == 0 {
		periods = 1
	}

	balloon := plan.loan.BalloonAmount
	if balloon.GreaterThanOrEqual(principal) {
		balloon = decimal.Zero
	}

	rows, err := domain.GenerateSchedule(domain.ScheduleParams{
		Principal:  principal,
		AnnualRate: plan.loan.AnnualRate,
		Frequency:  plan.loan.Frequency,
		Method:     plan.loan.Method,
		StartDate:  start,
		Balloon:    balloon,
		Currency:   plan.loan.Currency,
		Periods:    periods,
	})
	if err != nil {
		return err
	}

	fresh := buildInstallments(uc.deps.IDGen, plan.loan, rows, maxNo+1, now)
	if err := uc.deps.Installments.CreateBatch(ctx, tx, fresh); err != nil {
		return err
	}

	result.Regenerated = len(fresh)
	result.Installments = append(plan.all, fresh...)
	return nil
}

func dateOr(date *time.Time, now time.Time) time.Time {
	if date != nil {
		return domain.DateOf(*date)
	}
	return domain.DateOf(now)
}
