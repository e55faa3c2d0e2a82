package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// rateScale is the number of decimal places kept for period rates and
// intermediate annuity factors before money rounding.
const rateScale = 24

// ScheduleParams is the input to GenerateSchedule.
type ScheduleParams struct {
	Principal   decimal.Decimal
	AnnualRate  decimal.Decimal // fraction, 0.12 for 12%
	TenorMonths int
	Frequency   Frequency
	Method      ScheduleMethod
	StartDate   time.Time
	Balloon     decimal.Decimal
	Currency    string
	// Periods overrides the count derived from TenorMonths when positive.
	// Used when re-amortizing the remainder of an existing plan.
	Periods int
}

// ScheduleRow is one generated installment.
type ScheduleRow struct {
	InstallmentNo int
	DueDate       time.Time
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	Total         decimal.Decimal
	Outstanding   decimal.Decimal // principal still owed after this row
}

// Validate checks generator input.
func (p ScheduleParams) Validate() error {
	if !p.Principal.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidPrincipal, p.Principal)
	}
	if p.AnnualRate.IsNegative() {
		return fmt.Errorf("%w: got %s", ErrInvalidRate, p.AnnualRate)
	}
	if p.Periods < 0 {
		return fmt.Errorf("%w: periods %d", ErrInvalidTenor, p.Periods)
	}
	if p.Periods == 0 && (p.TenorMonths <= 0 || p.TenorMonths > MaxTenorMonths) {
		return fmt.Errorf("%w: got %d months", ErrInvalidTenor, p.TenorMonths)
	}
	if _, err := ParseFrequency(string(p.Frequency)); err != nil {
		return err
	}
	if _, err := ParseScheduleMethod(string(p.Method)); err != nil {
		return err
	}
	if p.Balloon.IsNegative() || p.Balloon.GreaterThanOrEqual(p.Principal) {
		return fmt.Errorf("%w: got %s", ErrInvalidBalloon, p.Balloon)
	}
	if p.StartDate.IsZero() {
		return ErrInvalidStartDate
	}
	if p.Currency != "" {
		if err := ValidateCurrency(p.Currency); err != nil {
			return err
		}
	}
	return nil
}

// PeriodCount returns the number of rows the schedule will have.
func (p ScheduleParams) PeriodCount() int {
	if p.Periods > 0 {
		return p.Periods
	}
	return p.Frequency.PeriodCount(p.TenorMonths)
}

// PeriodRate is the annual rate divided by the periods per year.
func (p ScheduleParams) PeriodRate() decimal.Decimal {
	return p.AnnualRate.DivRound(decimal.NewFromInt(int64(p.Frequency.PeriodsPerYear())), rateScale)
}

// GenerateSchedule builds the installment rows for p.
//
// Principal is rounded to the currency's minor unit on every row and the last
// row absorbs whatever residue is left, so the principal column always sums to
// p.Principal exactly. The balloon is excluded from regular amortization and
// paid with the last row.
func GenerateSchedule(p ScheduleParams) ([]ScheduleRow, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.PeriodCount()
	prec := MinorUnits(p.Currency)
	r := p.PeriodRate()

	amortizing := p.Principal.Sub(p.Balloon)
	evenPrincipal := amortizing.DivRound(decimal.NewFromInt(int64(n)), prec)
	flatInterest := p.Principal.Mul(r).Round(prec)

	var payment decimal.Decimal
	if p.Method == ScheduleMethodAnnuity && !r.IsZero() {
		payment = annuityPayment(amortizing, r, n)
	}

	outstanding := p.Principal
	amortRemaining := amortizing
	paid := decimal.Zero
	rows := make([]ScheduleRow, 0, n)

	for k := 1; k <= n; k++ {
		var principal, interest decimal.Decimal

		switch p.Method {
		case ScheduleMethodAnnuity:
			interest = outstanding.Mul(r).Round(prec)
			if r.IsZero() {
				principal = evenPrincipal
			} else {
				principal = payment.Sub(amortRemaining.Mul(r)).Round(prec)
			}
		case ScheduleMethodFlat:
			interest = flatInterest
			principal = evenPrincipal
		case ScheduleMethodEffective:
			interest = outstanding.Mul(r).Round(prec)
			principal = evenPrincipal
		}

		if k == n {
			principal = p.Principal.Sub(paid)
		} else {
			principal = clampDecimal(principal, decimal.Zero, amortRemaining)
			amortRemaining = amortRemaining.Sub(principal)
		}

		paid = paid.Add(principal)
		outstanding = outstanding.Sub(principal)

		rows = append(rows, ScheduleRow{
			InstallmentNo: k,
			DueDate:       p.Frequency.DueDate(p.StartDate, k),
			Principal:     principal,
			Interest:      interest,
			Total:         principal.Add(interest),
			Outstanding:   outstanding,
		})
	}

	return rows, nil
}

// annuityPayment returns the unrounded level payment P*r*f/(f-1) with f=(1+r)^n.
func annuityPayment(principal, r decimal.Decimal, n int) decimal.Decimal {
	f := powInt(decimal.NewFromInt(1).Add(r), n)
	return principal.Mul(r).Mul(f).DivRound(f.Sub(decimal.NewFromInt(1)), rateScale)
}

// powInt computes base^n by squaring, truncating intermediates to rateScale.
func powInt(base decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Truncate(rateScale)
		}
		base = base.Mul(base).Truncate(rateScale)
		n >>= 1
	}
	return result
}

func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// SumPrincipal adds up the principal column.
func SumPrincipal(rows []ScheduleRow) decimal.Decimal {
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Principal)
	}
	return sum
}
