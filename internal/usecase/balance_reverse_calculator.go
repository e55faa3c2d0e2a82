package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// ReverseCalculator derives history by peeling each day's flows off a known
// current balance, walking back to the opening date. It is used for linked
// accounts whose provider reports today's balance.
type ReverseCalculator struct {
	deps      CalculatorDeps
	account   *domain.Account
	fallbacks int
}

// NewReverseCalculator creates a reverse calculator for account.
func NewReverseCalculator(deps CalculatorDeps, account *domain.Account) *ReverseCalculator {
	return &ReverseCalculator{deps: deps, account: account}
}

// FXFallbacks implements BalanceCalculator.
func (c *ReverseCalculator) FXFallbacks() int {
	return c.fallbacks
}

// Calculate implements BalanceCalculator. Windows and valuations are ignored:
// the current anchor is authoritative and the opening date is pinned to the
// opening balance. When the anchor and the ledger disagree, the day after
// opening starts from the pinned balance and books the difference as an
// adjustment, so every day still starts where the previous one ended.
func (c *ReverseCalculator) Calculate(ctx context.Context, _ CalculateRequest) ([]*domain.Balance, error) {
	c.fallbacks = 0

	opening := domain.DateOf(c.account.OpeningDate)
	anchorDate, anchorTotal := c.deps.today(), c.account.Balance
	if c.account.IsLinked() {
		anchorDate, anchorTotal = domain.DateOf(*c.account.CurrentAnchorDate), *c.account.CurrentAnchorBalance
	}
	anchorDate = domain.MaxDate(anchorDate, opening)

	cache, err := NewSyncCache(ctx, c.deps.Cache, c.account, opening, anchorDate)
	if err != nil {
		return nil, err
	}
	c.fallbacks = cache.FallbackCount()

	base := newCalculatorBase(c.account, cache)

	endCash := base.cashFromTotal(anchorTotal, anchorDate)
	endNonCash := anchorTotal.Sub(endCash)

	rows := make([]*domain.Balance, domain.DaysBetween(opening, anchorDate)+1)
	for d := anchorDate; !d.Before(opening); d = domain.PrevDay(d) {
		flows := base.flowsFor(d)
		idx := domain.DaysBetween(opening, d)

		if d.Equal(opening) {
			openCash := base.cashFromTotal(c.account.OpeningBalance, d)
			openNonCash := c.account.OpeningBalance.Sub(openCash)
			rows[idx] = base.buildRow(d, decimal.Zero, decimal.Zero, openCash, openNonCash, flows)

			if idx+1 < len(rows) {
				next := rows[idx+1]
				rows[idx+1] = base.buildRow(next.Date, openCash, openNonCash, next.CashBalance, next.NonCashBalance(), base.flowsFor(next.Date))
			}
			break
		}

		startCash := endCash.Sub(base.netCash(flows))
		startNonCash := endNonCash.Sub(base.netNonCash(flows))
		rows[idx] = base.buildRow(d, startCash, startNonCash, endCash, endNonCash, flows)

		endCash, endNonCash = startCash, startNonCash
	}

	return rows, nil
}
