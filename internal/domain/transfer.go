package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferKind records why money moved between two accounts.
type TransferKind string

const (
	TransferKindInstallment  TransferKind = "loan_installment"
	TransferKindExtraPayment TransferKind = "loan_extra_payment"
	TransferKindBorrowing    TransferKind = "loan_borrowing"
)

// Transfer represents a money movement between two accounts. It is booked as
// an outflow entry on the source and an inflow entry on the destination.
type Transfer struct {
	ID            string
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Currency      string
	Kind          TransferKind
	Date          time.Time
	Metadata      map[string]any
	CreatedAt     time.Time
}

// Validate validates transfer request.
func (t *Transfer) Validate() error {
	if t.FromAccountID == t.ToAccountID {
		return ErrSameAccount
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	return ValidateMetadata(t.Metadata)
}
