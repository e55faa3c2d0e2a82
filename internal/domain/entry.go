package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind discriminates ledger lines.
type EntryKind string

const (
	EntryKindTransaction EntryKind = "transaction"
	EntryKindTrade       EntryKind = "trade"
	EntryKindValuation   EntryKind = "valuation"
)

// ParseEntryKind returns the kind for s or ErrInvalidEntryKind.
func ParseEntryKind(s string) (EntryKind, error) {
	switch k := EntryKind(s); k {
	case EntryKindTransaction, EntryKindTrade, EntryKindValuation:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEntryKind, s)
}

// Entry is a single ledger line on an account.
//
// A positive amount is an outflow on an asset account and a debt increase on a
// liability account. Valuation amounts are the absolute total balance for the day.
type Entry struct {
	ID         string
	AccountID  string
	TransferID *string
	Date       time.Time
	Amount     decimal.Decimal
	Currency   string
	Kind       EntryKind
	Name       string
	Category   string
	CreatedAt  time.Time
}

// IsValuation reports whether the entry overrides the day's total balance.
func (e *Entry) IsValuation() bool {
	return e.Kind == EntryKindValuation
}

// IsInflow reports whether the amount is negative (money or value coming in).
func (e *Entry) IsInflow() bool {
	return e.Amount.IsNegative()
}

// Validate checks the fields required before an entry is stored.
func (e *Entry) Validate() error {
	if _, err := ParseEntryKind(string(e.Kind)); err != nil {
		return err
	}
	if err := ValidateCurrency(e.Currency); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: entry date is required", ErrInvalidDate)
	}
	if e.IsValuation() && e.Amount.IsNegative() {
		return fmt.Errorf("%w: valuation must not be negative", ErrInvalidAmount)
	}
	return nil
}

// Holding is a date-stamped position on an investment-like account.
type Holding struct {
	ID         string
	AccountID  string
	SecurityID string
	Date       time.Time
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Amount     decimal.Decimal
	Currency   string
}
