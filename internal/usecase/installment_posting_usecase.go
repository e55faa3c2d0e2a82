package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/ledgerbook/internal/domain"
)

// InstallmentPostingUseCase realizes scheduled installments as money movements.
type InstallmentPostingUseCase struct {
	deps LoanDeps
}

// NewInstallmentPostingUseCase creates a new InstallmentPostingUseCase.
func NewInstallmentPostingUseCase(deps LoanDeps) *InstallmentPostingUseCase {
	return &InstallmentPostingUseCase{deps: deps}
}

// PostInstallmentInput selects the installment and the paying account.
type PostInstallmentInput struct {
	InstallmentID   string
	SourceAccountID string
	PaidOn          *time.Time
}

// PostInstallmentResult reports the posted installment. AlreadyPosted is set
// when the installment was settled before this call and nothing was written.
type PostInstallmentResult struct {
	Installment   *domain.LoanInstallment
	TransferID    string
	AlreadyPosted bool
}

// PostInstallment books the principal as a transfer from the source account to
// the loan account and the interest as an expense entry on the source, then
// moves the installment to its settled status. Posting a settled installment
// is a no-op that returns the original transfer.
func (uc *InstallmentPostingUseCase) PostInstallment(ctx context.Context, input PostInstallmentInput) (*PostInstallmentResult, error) {
	start := time.Now()

	var (
		result  *PostInstallmentResult
		loanAcc string
	)
	err := uc.deps.retry(ctx, func() error {
		var err error
		result, loanAcc, err = uc.post(ctx, input)
		return err
	})

	outcome := "posted"
	switch {
	case err != nil:
		outcome = "error"
	case result.AlreadyPosted:
		outcome = "already_posted"
	}
	if uc.deps.Metrics != nil {
		uc.deps.Metrics.InstallmentsPosted.WithLabelValues(outcome).Inc()
		uc.deps.Metrics.PostingDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return nil, err
	}

	if !result.AlreadyPosted {
		uc.deps.Logger.Info().
			Str("installment_id", result.Installment.ID).
			Str("loan_id", result.Installment.LoanID).
			Str("status", string(result.Installment.Status)).
			Str("transfer_id", result.TransferID).
			Msg("installment posted")

		uc.deps.scheduleSyncs(ctx, *result.Installment.PaidOn, "installment_posted", input.SourceAccountID, loanAcc)
	}

	return result, nil
}

func (uc *InstallmentPostingUseCase) post(ctx context.Context, input PostInstallmentInput) (*PostInstallmentResult, string, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.deps.TxManager.Begin(txCtx)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Row lock: a concurrent poster waits here and then sees the settled status.
	installment, err := uc.deps.Installments.GetByIDForUpdate(txCtx, tx, input.InstallmentID)
	if err != nil {
		return nil, "", err
	}

	if installment.Status.IsSettled() {
		transferID := ""
		if installment.TransferID != nil {
			transferID = *installment.TransferID
		}
		return &PostInstallmentResult{Installment: installment, TransferID: transferID, AlreadyPosted: true}, "", nil
	}

	event, err := installment.PostingEvent()
	if err != nil {
		return nil, "", err
	}

	loan, err := uc.deps.Loans.GetByID(txCtx, installment.LoanID)
	if err != nil {
		return nil, "", err
	}

	source, err := uc.deps.Accounts.GetByID(txCtx, input.SourceAccountID)
	if err != nil {
		return nil, "", err
	}

	loanAccount, err := uc.deps.Accounts.GetByID(txCtx, loan.AccountID)
	if err != nil {
		return nil, "", err
	}

	if source.Currency != loanAccount.Currency {
		return nil, "", domain.ErrCurrencyMismatch
	}

	now := uc.deps.now()
	paidOn := domain.DateOf(now)
	if input.PaidOn != nil {
		paidOn = domain.DateOf(*input.PaidOn)
	}

	var transferID *string
	if installment.PrincipalAmount.IsPositive() {
		transfer, err := uc.deps.booker().book(txCtx, tx, bookTransferInput{
			From:   source,
			To:     loanAccount,
			Amount: installment.PrincipalAmount,
			Date:   paidOn,
			Kind:   domain.TransferKindInstallment,
			Name:   fmt.Sprintf("Loan installment #%d", installment.InstallmentNo),
			Metadata: map[string]any{
				"loan_id":        loan.ID,
				"installment_id": installment.ID,
			},
		}, now)
		if err != nil {
			return nil, "", err
		}
		transferID = &transfer.ID
	}

	if charge := installment.InterestAmount.Add(installment.FeeAmount); charge.IsPositive() {
		interest := &domain.Entry{
			ID:        uc.deps.IDGen.Generate(),
			AccountID: source.ID,
			Date:      paidOn,
			Amount:    charge,
			Currency:  source.Currency,
			Kind:      domain.EntryKindTransaction,
			Name:      fmt.Sprintf("Loan interest #%d", installment.InstallmentNo),
			Category:  loan.InterestCategory,
			CreatedAt: now,
		}
		if err := uc.deps.Entries.Create(txCtx, tx, interest); err != nil {
			return nil, "", err
		}
	}

	if err := domain.NewInstallmentFSM(installment).Fire(txCtx, event); err != nil {
		return nil, "", err
	}

	installment.TransferID = transferID
	installment.PaidOn = &paidOn
	installment.UpdatedAt = now

	if err := uc.deps.Installments.Update(txCtx, tx, installment); err != nil {
		return nil, "", err
	}

	result := &PostInstallmentResult{Installment: installment}
	if transferID != nil {
		result.TransferID = *transferID
	}

	posted := domain.InstallmentPostedEvent{
		InstallmentID: installment.ID,
		LoanID:        loan.ID,
		TransferID:    result.TransferID,
		Principal:     installment.PrincipalAmount.String(),
		Interest:      installment.InterestAmount.String(),
		Status:        string(installment.Status),
		PaidOn:        domain.FormatDate(paidOn),
	}
	if err := writeEvent(txCtx, tx, uc.deps.Outbox, uc.deps.IDGen,
		domain.AggregateTypeInstallment, installment.ID, domain.EventTypeInstallmentPosted, posted, now); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, "", err
	}

	return result, loanAccount.ID, nil
}
