package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// TransferUseCase exposes booked transfers.
type TransferUseCase struct {
	transferRepo TransferRepository
	entryRepo    EntryRepository
}

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(transferRepo TransferRepository, entryRepo EntryRepository) *TransferUseCase {
	return &TransferUseCase{
		transferRepo: transferRepo,
		entryRepo:    entryRepo,
	}
}

// GetTransfer returns a transfer with its two ledger legs.
func (uc *TransferUseCase) GetTransfer(ctx context.Context, id string) (*domain.Transfer, []*domain.Entry, error) {
	transfer, err := uc.transferRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	entries, err := uc.entryRepo.GetByTransfer(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return transfer, entries, nil
}

// bookTransferInput describes a money movement between two accounts.
type bookTransferInput struct {
	From     *domain.Account
	To       *domain.Account
	Amount   decimal.Decimal
	Date     time.Time
	Kind     domain.TransferKind
	Name     string
	Metadata map[string]any
}

// transferBooker writes a transfer and its entries inside a caller's transaction.
type transferBooker struct {
	transferRepo TransferRepository
	entryRepo    EntryRepository
	idGen        IDGenerator
}

// book records the transfer, an outflow (+amount) on the source and an
// inflow (-amount) on the destination. On a liability destination the inflow
// reduces debt; on a liability source the outflow increases it.
func (b transferBooker) book(ctx context.Context, tx Transaction, in bookTransferInput, now time.Time) (*domain.Transfer, error) {
	if in.From.Currency != in.To.Currency {
		return nil, domain.ErrCurrencyMismatch
	}

	transfer := &domain.Transfer{
		ID:            b.idGen.Generate(),
		FromAccountID: in.From.ID,
		ToAccountID:   in.To.ID,
		Amount:        in.Amount,
		Currency:      in.From.Currency,
		Kind:          in.Kind,
		Date:          domain.DateOf(in.Date),
		Metadata:      in.Metadata,
		CreatedAt:     now,
	}

	if err := transfer.Validate(); err != nil {
		return nil, err
	}

	if err := b.transferRepo.Create(ctx, tx, transfer); err != nil {
		return nil, err
	}

	legs := []struct {
		account *domain.Account
		amount  decimal.Decimal
	}{
		{in.From, in.Amount},
		{in.To, in.Amount.Neg()},
	}

	for _, leg := range legs {
		entry := &domain.Entry{
			ID:         b.idGen.Generate(),
			AccountID:  leg.account.ID,
			TransferID: &transfer.ID,
			Date:       transfer.Date,
			Amount:     leg.amount,
			Currency:   transfer.Currency,
			Kind:       domain.EntryKindTransaction,
			Name:       in.Name,
			CreatedAt:  now,
		}
		if err := b.entryRepo.Create(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	return transfer, nil
}
