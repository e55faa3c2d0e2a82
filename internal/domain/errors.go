package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidAccountKind   = errors.New("invalid account kind")
	ErrInvalidOpeningAnchor = errors.New("invalid opening anchor")

	// Entry errors
	ErrInvalidEntryKind = errors.New("invalid entry kind")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidWindow    = errors.New("window start must not be after window end")

	// Transfer errors
	ErrSameAccount      = errors.New("cannot transfer to same account")
	ErrCurrencyMismatch = errors.New("cannot transfer between different currencies")
	ErrTransferNotFound = errors.New("transfer not found")

	// Schedule errors
	ErrInvalidPrincipal      = errors.New("principal must be positive")
	ErrInvalidRate           = errors.New("rate must not be negative")
	ErrInvalidTenor          = errors.New("tenor must be positive")
	ErrInvalidFrequency      = errors.New("invalid payment frequency")
	ErrInvalidScheduleMethod = errors.New("invalid schedule method")
	ErrInvalidBalloon        = errors.New("balloon must be non-negative and below principal")
	ErrInvalidStartDate      = errors.New("start date is required")

	// Loan errors
	ErrLoanNotFound                 = errors.New("loan not found")
	ErrInstallmentNotFound          = errors.New("installment not found")
	ErrInvalidInstallmentStatus     = errors.New("invalid installment status")
	ErrInvalidStatusTransition      = errors.New("invalid installment status transition")
	ErrInstallmentNotPostable       = errors.New("installment cannot be posted")
	ErrInvalidAllocation            = errors.New("invalid extra payment allocation")
	ErrExtraPaymentExceedsPrincipal = errors.New("extra payment exceeds outstanding principal")
	ErrLoanAccountNotLiability      = errors.New("loan account must be a liability")

	// Balance sync errors
	ErrBalanceSyncInProgress = errors.New("balance sync already in progress for account")
	ErrMissingExchangeRate   = errors.New("missing exchange rate")
	ErrInvalidStrategy       = errors.New("invalid sync strategy")
	ErrBalanceNotFound       = errors.New("balance not found")

	// Concurrency errors
	ErrOptimisticLock      = errors.New("optimistic lock conflict")
	ErrIdempotencyConflict = errors.New("idempotency key already used with a different request")
)
