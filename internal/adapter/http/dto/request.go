package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// Dates travel as YYYY-MM-DD strings.

func parseDate(field, s string) (time.Time, error) {
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q", domain.ErrInvalidDate, field, s)
	}
	return d, nil
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q", domain.ErrInvalidAmount, field, s)
	}
	return d, nil
}

func parseOptionalAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseAmount(field, s)
}

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	Name                 string  `json:"name"`
	Currency             string  `json:"currency"`
	Kind                 string  `json:"kind"`
	OpeningBalance       string  `json:"opening_balance"`
	OpeningDate          string  `json:"opening_date"`
	CurrentAnchorBalance *string `json:"current_anchor_balance,omitempty"`
	CurrentAnchorDate    *string `json:"current_anchor_date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() (usecase.CreateAccountInput, error) {
	kind, err := domain.ParseAccountKind(r.Kind)
	if err != nil {
		return usecase.CreateAccountInput{}, err
	}
	opening, err := parseOptionalAmount("opening_balance", r.OpeningBalance)
	if err != nil {
		return usecase.CreateAccountInput{}, err
	}
	openingDate, err := parseDate("opening_date", r.OpeningDate)
	if err != nil {
		return usecase.CreateAccountInput{}, err
	}

	input := usecase.CreateAccountInput{
		Name:           r.Name,
		Currency:       r.Currency,
		Kind:           kind,
		OpeningBalance: opening,
		OpeningDate:    openingDate,
	}

	if r.CurrentAnchorBalance != nil {
		anchor, err := parseAmount("current_anchor_balance", *r.CurrentAnchorBalance)
		if err != nil {
			return usecase.CreateAccountInput{}, err
		}
		input.CurrentAnchorBalance = &anchor
	}
	if input.CurrentAnchorDate, err = parseOptionalDate("current_anchor_date", r.CurrentAnchorDate); err != nil {
		return usecase.CreateAccountInput{}, err
	}

	return input, nil
}

// RecordEntryRequest represents a ledger line posted to an account.
type RecordEntryRequest struct {
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordEntryRequest) ToUseCaseInput(accountID string) (usecase.RecordEntryInput, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return usecase.RecordEntryInput{}, err
	}
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return usecase.RecordEntryInput{}, err
	}
	kind, err := domain.ParseEntryKind(r.Kind)
	if err != nil {
		return usecase.RecordEntryInput{}, err
	}

	return usecase.RecordEntryInput{
		AccountID: accountID,
		Date:      date,
		Amount:    amount,
		Currency:  r.Currency,
		Kind:      kind,
		Name:      r.Name,
		Category:  r.Category,
	}, nil
}

// SyncBalancesRequest asks for an account's balances to be rebuilt. Async
// requests are queued and answered with 202.
type SyncBalancesRequest struct {
	Strategy    string  `json:"strategy,omitempty"`
	WindowStart *string `json:"window_start,omitempty"`
	WindowEnd   *string `json:"window_end,omitempty"`
	Async       bool    `json:"async,omitempty"`
}

// ToUseCaseInput converts to materializer input.
func (r *SyncBalancesRequest) ToUseCaseInput(accountID string) (usecase.MaterializeInput, error) {
	strategy, err := domain.ParseSyncStrategy(r.Strategy)
	if err != nil {
		return usecase.MaterializeInput{}, err
	}
	start, err := parseOptionalDate("window_start", r.WindowStart)
	if err != nil {
		return usecase.MaterializeInput{}, err
	}
	end, err := parseOptionalDate("window_end", r.WindowEnd)
	if err != nil {
		return usecase.MaterializeInput{}, err
	}
	if err := domain.ValidateWindow(start, end); err != nil {
		return usecase.MaterializeInput{}, err
	}

	return usecase.MaterializeInput{
		AccountID:   accountID,
		Strategy:    strategy,
		WindowStart: start,
		WindowEnd:   end,
	}, nil
}

// SyncAllRequest rebuilds every account.
type SyncAllRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

// ScheduleRequest carries the loan terms shared by preview and creation.
type ScheduleRequest struct {
	Principal   string `json:"principal"`
	AnnualRate  string `json:"annual_rate"`
	TenorMonths int    `json:"tenor_months"`
	Frequency   string `json:"frequency"`
	Method      string `json:"method"`
	StartDate   string `json:"start_date"`
	Balloon     string `json:"balloon,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// ToScheduleParams converts to generator input.
func (r *ScheduleRequest) ToScheduleParams() (domain.ScheduleParams, error) {
	principal, err := parseAmount("principal", r.Principal)
	if err != nil {
		return domain.ScheduleParams{}, err
	}
	rate, err := parseOptionalAmount("annual_rate", r.AnnualRate)
	if err != nil {
		return domain.ScheduleParams{}, err
	}
	balloon, err := parseOptionalAmount("balloon", r.Balloon)
	if err != nil {
		return domain.ScheduleParams{}, err
	}
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return domain.ScheduleParams{}, err
	}
	frequency, err := domain.ParseFrequency(r.Frequency)
	if err != nil {
		return domain.ScheduleParams{}, err
	}
	method, err := domain.ParseScheduleMethod(r.Method)
	if err != nil {
		return domain.ScheduleParams{}, err
	}

	currency := r.Currency
	if currency == "" {
		currency = "USD"
	}

	return domain.ScheduleParams{
		Principal:   principal,
		AnnualRate:  rate,
		TenorMonths: r.TenorMonths,
		Frequency:   frequency,
		Method:      method,
		StartDate:   start,
		Balloon:     balloon,
		Currency:    currency,
	}, nil
}

// CreateLoanRequest books a loan against a liability account.
type CreateLoanRequest struct {
	ScheduleRequest
	AccountID        string `json:"account_id"`
	InterestCategory string `json:"interest_category,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateLoanRequest) ToUseCaseInput() (usecase.CreateLoanInput, error) {
	params, err := r.ToScheduleParams()
	if err != nil {
		return usecase.CreateLoanInput{}, err
	}

	return usecase.CreateLoanInput{
		AccountID:        r.AccountID,
		Principal:        params.Principal,
		AnnualRate:       params.AnnualRate,
		TenorMonths:      params.TenorMonths,
		Frequency:        params.Frequency,
		Method:           params.Method,
		StartDate:        params.StartDate,
		Balloon:          params.Balloon,
		InterestCategory: r.InterestCategory,
	}, nil
}

// PostInstallmentRequest pays an installment from an account.
type PostInstallmentRequest struct {
	SourceAccountID string  `json:"source_account_id"`
	PaidOn          *string `json:"paid_on,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PostInstallmentRequest) ToUseCaseInput(installmentID string) (usecase.PostInstallmentInput, error) {
	paidOn, err := parseOptionalDate("paid_on", r.PaidOn)
	if err != nil {
		return usecase.PostInstallmentInput{}, err
	}
	return usecase.PostInstallmentInput{
		InstallmentID:   installmentID,
		SourceAccountID: r.SourceAccountID,
		PaidOn:          paidOn,
	}, nil
}

// ExtraPaymentRequest repays principal outside the plan.
type ExtraPaymentRequest struct {
	SourceAccountID string  `json:"source_account_id"`
	Amount          string  `json:"amount"`
	Date            *string `json:"date,omitempty"`
	Allocation      string  `json:"allocation,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ExtraPaymentRequest) ToUseCaseInput(loanID string) (usecase.ExtraPaymentInput, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return usecase.ExtraPaymentInput{}, err
	}
	date, err := parseOptionalDate("date", r.Date)
	if err != nil {
		return usecase.ExtraPaymentInput{}, err
	}
	return usecase.ExtraPaymentInput{
		LoanID:          loanID,
		SourceAccountID: r.SourceAccountID,
		Amount:          amount,
		Date:            date,
		Allocation:      domain.ExtraPaymentAllocation(r.Allocation),
	}, nil
}

// BorrowingRequest draws more principal on a loan.
type BorrowingRequest struct {
	DestinationAccountID string  `json:"destination_account_id"`
	Amount               string  `json:"amount"`
	Date                 *string `json:"date,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *BorrowingRequest) ToUseCaseInput(loanID string) (usecase.BorrowingInput, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return usecase.BorrowingInput{}, err
	}
	date, err := parseOptionalDate("date", r.Date)
	if err != nil {
		return usecase.BorrowingInput{}, err
	}
	return usecase.BorrowingInput{
		LoanID:               loanID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               amount,
		Date:                 date,
	}, nil
}

// SaveExchangeRateRequest stores a daily fixing.
type SaveExchangeRateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
	Rate string `json:"rate"`
}

// Parse validates the request.
func (r *SaveExchangeRateRequest) Parse() (time.Time, decimal.Decimal, error) {
	if err := domain.ValidateCurrency(r.From); err != nil {
		return time.Time{}, decimal.Zero, err
	}
	if err := domain.ValidateCurrency(r.To); err != nil {
		return time.Time{}, decimal.Zero, err
	}
	date, err := parseDate("date", r.Date)
	if err != nil {
		return time.Time{}, decimal.Zero, err
	}
	rate, err := parseAmount("rate", r.Rate)
	if err != nil {
		return time.Time{}, decimal.Zero, err
	}
	if !rate.IsPositive() {
		return time.Time{}, decimal.Zero, fmt.Errorf("%w: rate %s", domain.ErrInvalidAmount, rate)
	}
	return date, rate, nil
}
