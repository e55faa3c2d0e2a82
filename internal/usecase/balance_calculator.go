package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// BalanceCalculator produces one balance row per date, sorted ascending.
type BalanceCalculator interface {
	Calculate(ctx context.Context, req CalculateRequest) ([]*domain.Balance, error)
	// FXFallbacks reports the 1:1 conversions made by the last Calculate call.
	FXFallbacks() int
}

// CalculateRequest is the optional window for a forward calculation.
type CalculateRequest struct {
	WindowStart *time.Time
	WindowEnd   *time.Time
}

// CalculatorDeps is shared by the forward and reverse calculators.
type CalculatorDeps struct {
	Balances BalanceRepository
	Cache    SyncCacheSource
	Clock    Clock
}

func (d CalculatorDeps) today() time.Time {
	if d.Clock != nil {
		return domain.DateOf(d.Clock())
	}
	return domain.DateOf(time.Now().UTC())
}

// dayFlows is the per-day aggregation of an account's ledger.
type dayFlows struct {
	cashIn     decimal.Decimal
	cashOut    decimal.Decimal
	nonCashIn  decimal.Decimal
	nonCashOut decimal.Decimal
	market     decimal.Decimal
}

// calculatorBase holds the arithmetic both calculators share.
type calculatorBase struct {
	account *domain.Account
	cache   *SyncCache
	factor  decimal.Decimal
}

func newCalculatorBase(account *domain.Account, cache *SyncCache) calculatorBase {
	return calculatorBase{
		account: account,
		cache:   cache,
		factor:  decimal.NewFromInt(int64(account.FlowsFactor())),
	}
}

// flowsFor aggregates the day's transactions and trades. Transactions on
// non-cash accounts move non-cash value; trades move cash one way and
// non-cash value the other.
func (b calculatorBase) flowsFor(date time.Time) dayFlows {
	f := dayFlows{
		cashIn:     decimal.Zero,
		cashOut:    decimal.Zero,
		nonCashIn:  decimal.Zero,
		nonCashOut: decimal.Zero,
		market:     decimal.Zero,
	}

	nonCashAccount := b.account.BalanceType() == domain.BalanceTypeNonCash

	for _, e := range b.cache.Entries(date) {
		in, out := splitAmount(e.Amount)

		switch {
		case e.Kind == domain.EntryKindTrade:
			f.cashIn = f.cashIn.Add(in)
			f.cashOut = f.cashOut.Add(out)
			f.nonCashIn = f.nonCashIn.Add(out)
			f.nonCashOut = f.nonCashOut.Add(in)
		case nonCashAccount:
			f.nonCashIn = f.nonCashIn.Add(in)
			f.nonCashOut = f.nonCashOut.Add(out)
		default:
			f.cashIn = f.cashIn.Add(in)
			f.cashOut = f.cashOut.Add(out)
		}
	}

	if b.account.BalanceType() == domain.BalanceTypeInvestment {
		delta := b.cache.HoldingsValue(date).Sub(b.cache.HoldingsValue(domain.PrevDay(date)))
		f.market = delta.Sub(f.nonCashIn.Sub(f.nonCashOut).Mul(b.factor))
	}

	return f
}

func splitAmount(amount decimal.Decimal) (in, out decimal.Decimal) {
	if amount.IsNegative() {
		return amount.Abs(), decimal.Zero
	}
	return decimal.Zero, amount
}

func (b calculatorBase) netCash(f dayFlows) decimal.Decimal {
	return f.cashIn.Sub(f.cashOut).Mul(b.factor)
}

func (b calculatorBase) netNonCash(f dayFlows) decimal.Decimal {
	return f.nonCashIn.Sub(f.nonCashOut).Mul(b.factor).Add(f.market)
}

// cashFromTotal splits a total into its cash part by the account's balance type.
func (b calculatorBase) cashFromTotal(total decimal.Decimal, date time.Time) decimal.Decimal {
	switch b.account.BalanceType() {
	case domain.BalanceTypeCash:
		return total
	case domain.BalanceTypeInvestment:
		return total.Sub(b.cache.HoldingsValue(date))
	default:
		return decimal.Zero
	}
}

// buildRow assembles a row whose adjustments make both recurrences close
// exactly from the start values to the end values.
func (b calculatorBase) buildRow(date time.Time, startCash, startNonCash, endCash, endNonCash decimal.Decimal, f dayFlows) *domain.Balance {
	cashAdj := endCash.Sub(startCash.Add(b.netCash(f)))
	nonCashAdj := endNonCash.Sub(startNonCash.Add(b.netNonCash(f)))

	return &domain.Balance{
		AccountID:           b.account.ID,
		Date:                domain.DateOf(date),
		Currency:            b.account.Currency,
		Balance:             endCash.Add(endNonCash),
		CashBalance:         endCash,
		StartCashBalance:    startCash,
		StartNonCashBalance: startNonCash,
		CashInflows:         f.cashIn,
		CashOutflows:        f.cashOut,
		NonCashInflows:      f.nonCashIn,
		NonCashOutflows:     f.nonCashOut,
		NetMarketFlows:      f.market,
		CashAdjustments:     cashAdj,
		NonCashAdjustments:  nonCashAdj,
		FlowsFactor:         b.account.FlowsFactor(),
	}
}
