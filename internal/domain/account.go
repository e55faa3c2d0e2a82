package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind identifies what an account models.
type AccountKind string

const (
	AccountKindDepository     AccountKind = "depository"
	AccountKindCreditCard     AccountKind = "credit_card"
	AccountKindInvestment     AccountKind = "investment"
	AccountKindCrypto         AccountKind = "crypto"
	AccountKindProperty       AccountKind = "property"
	AccountKindVehicle        AccountKind = "vehicle"
	AccountKindOtherAsset     AccountKind = "other_asset"
	AccountKindLoan           AccountKind = "loan"
	AccountKindOtherLiability AccountKind = "other_liability"
)

// Classification is the asset/liability polarity of an account.
type Classification string

const (
	ClassificationAsset     Classification = "asset"
	ClassificationLiability Classification = "liability"
)

// BalanceType controls how a total balance splits into cash and non-cash parts.
type BalanceType string

const (
	BalanceTypeCash       BalanceType = "cash"
	BalanceTypeNonCash    BalanceType = "non_cash"
	BalanceTypeInvestment BalanceType = "investment"
)

// ParseAccountKind returns the kind for s or ErrInvalidAccountKind.
func ParseAccountKind(s string) (AccountKind, error) {
	switch k := AccountKind(s); k {
	case AccountKindDepository, AccountKindCreditCard, AccountKindInvestment, AccountKindCrypto,
		AccountKindProperty, AccountKindVehicle, AccountKindOtherAsset, AccountKindLoan, AccountKindOtherLiability:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAccountKind, s)
}

// Classification returns the polarity implied by the kind.
func (k AccountKind) Classification() Classification {
	switch k {
	case AccountKindCreditCard, AccountKindLoan, AccountKindOtherLiability:
		return ClassificationLiability
	default:
		return ClassificationAsset
	}
}

// BalanceType returns the cash/non-cash treatment for the kind.
func (k AccountKind) BalanceType() BalanceType {
	switch k {
	case AccountKindDepository, AccountKindCreditCard:
		return BalanceTypeCash
	case AccountKindInvestment, AccountKindCrypto:
		return BalanceTypeInvestment
	default:
		return BalanceTypeNonCash
	}
}

// Account is a financial account whose daily balance history is materialized.
type Account struct {
	ID             string
	Name           string
	Currency       string
	Kind           AccountKind
	Balance        decimal.Decimal
	CashBalance    decimal.Decimal
	OpeningBalance decimal.Decimal
	OpeningDate    time.Time
	// Linked accounts carry a provider-reported balance used by reverse syncs.
	CurrentAnchorBalance *decimal.Decimal
	CurrentAnchorDate    *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Classification returns asset or liability.
func (a *Account) Classification() Classification {
	return a.Kind.Classification()
}

// IsAsset reports whether the account is an asset.
func (a *Account) IsAsset() bool {
	return a.Classification() == ClassificationAsset
}

// IsLiability reports whether the account is a liability.
func (a *Account) IsLiability() bool {
	return a.Classification() == ClassificationLiability
}

// BalanceType returns the cash/non-cash treatment for the account.
func (a *Account) BalanceType() BalanceType {
	return a.Kind.BalanceType()
}

// IsLinked reports whether the account has a provider-reported current anchor.
func (a *Account) IsLinked() bool {
	return a.CurrentAnchorBalance != nil && a.CurrentAnchorDate != nil
}

// FlowsFactor is +1 for assets and -1 for liabilities.
func (a *Account) FlowsFactor() int {
	if a.IsLiability() {
		return -1
	}
	return 1
}

// Validate checks the fields required before an account is stored.
func (a *Account) Validate() error {
	if err := ValidateAccountName(a.Name); err != nil {
		return err
	}
	if err := ValidateCurrency(a.Currency); err != nil {
		return err
	}
	if _, err := ParseAccountKind(string(a.Kind)); err != nil {
		return err
	}
	if a.OpeningDate.IsZero() {
		return fmt.Errorf("%w: opening date is required", ErrInvalidOpeningAnchor)
	}
	return nil
}
