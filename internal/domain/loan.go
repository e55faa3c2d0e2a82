package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInterestCategory is the system category for loan interest expense.
const DefaultInterestCategory = "loan_interest"

// Frequency is how often installments fall due.
type Frequency string

const (
	FrequencyMonthly      Frequency = "MONTHLY"
	FrequencyQuarterly    Frequency = "QUARTERLY"
	FrequencySemiAnnually Frequency = "SEMI_ANNUALLY"
	FrequencyAnnually     Frequency = "ANNUALLY"
	FrequencyWeekly       Frequency = "WEEKLY"
	FrequencyBiweekly     Frequency = "BIWEEKLY"
)

// ParseFrequency returns the frequency for s or ErrInvalidFrequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if f.PeriodsPerYear() == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return f, nil
}

// PeriodsPerYear returns how many installments fall in a year, or 0 if unknown.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	case FrequencySemiAnnually:
		return 2
	case FrequencyAnnually:
		return 1
	case FrequencyWeekly:
		return 52
	case FrequencyBiweekly:
		return 26
	}
	return 0
}

func (f Frequency) stepMonths() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnually:
		return 6
	case FrequencyAnnually:
		return 12
	}
	return 0
}

func (f Frequency) stepDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	}
	return 0
}

// PeriodCount returns the number of installments for a tenor in months.
func (f Frequency) PeriodCount(tenorMonths int) int {
	ppy := f.PeriodsPerYear()
	return (tenorMonths*ppy + 11) / 12
}

// DueDate returns the k-th due date (1-based) counted from start. Month-based
// frequencies step from start each time so a month-end start keeps clamping to
// month ends instead of drifting.
func (f Frequency) DueDate(start time.Time, k int) time.Time {
	if m := f.stepMonths(); m > 0 {
		return AddMonthsClamped(start, k*m)
	}
	return DateOf(start).AddDate(0, 0, k*f.stepDays())
}

// ScheduleMethod selects how principal and interest are split.
type ScheduleMethod string

const (
	ScheduleMethodAnnuity   ScheduleMethod = "ANNUITY"
	ScheduleMethodFlat      ScheduleMethod = "FLAT"
	ScheduleMethodEffective ScheduleMethod = "EFFECTIVE"
)

// ParseScheduleMethod returns the method for s or ErrInvalidScheduleMethod.
func ParseScheduleMethod(s string) (ScheduleMethod, error) {
	switch m := ScheduleMethod(s); m {
	case ScheduleMethodAnnuity, ScheduleMethodFlat, ScheduleMethodEffective:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScheduleMethod, s)
}

// ExtraPaymentAllocation decides what an extra payment does to the plan.
type ExtraPaymentAllocation string

const (
	// AllocationPrincipalFirst reduces remaining principal from the last
	// installment backwards, shortening the plan.
	AllocationPrincipalFirst ExtraPaymentAllocation = "principal_first"
	// AllocationScheduleReduction re-amortizes the remaining periods over the
	// lower balance.
	AllocationScheduleReduction ExtraPaymentAllocation = "schedule_reduction"
)

// ParseExtraPaymentAllocation returns the allocation for s; empty means principal_first.
func ParseExtraPaymentAllocation(s string) (ExtraPaymentAllocation, error) {
	switch a := ExtraPaymentAllocation(s); a {
	case "":
		return AllocationPrincipalFirst, nil
	case AllocationPrincipalFirst, AllocationScheduleReduction:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAllocation, s)
}

// Loan holds the terms of a loan booked against a liability account.
type Loan struct {
	ID               string
	AccountID        string
	Principal        decimal.Decimal
	AnnualRate       decimal.Decimal
	TenorMonths      int
	Frequency        Frequency
	Method           ScheduleMethod
	StartDate        time.Time
	BalloonAmount    decimal.Decimal
	Currency         string
	InterestCategory string
	// ExtraPrincipalPaid is principal repaid outside the plan. Principal
	// includes any additional borrowing.
	ExtraPrincipalPaid decimal.Decimal
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ScheduleParams returns generator input for the loan's original terms.
func (l *Loan) ScheduleParams() ScheduleParams {
	return ScheduleParams{
		Principal:   l.Principal,
		AnnualRate:  l.AnnualRate,
		TenorMonths: l.TenorMonths,
		Frequency:   l.Frequency,
		Method:      l.Method,
		StartDate:   l.StartDate,
		Balloon:     l.BalloonAmount,
		Currency:    l.Currency,
	}
}
