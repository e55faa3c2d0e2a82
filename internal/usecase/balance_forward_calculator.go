package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// ForwardCalculator rolls balances forward in time from a known starting point.
type ForwardCalculator struct {
	deps      CalculatorDeps
	tx        Transaction
	account   *domain.Account
	fallbacks int
}

// NewForwardCalculator creates a calculator for account. Seed rows are read
// through tx so a materialization sees its own writes.
func NewForwardCalculator(deps CalculatorDeps, tx Transaction, account *domain.Account) *ForwardCalculator {
	return &ForwardCalculator{deps: deps, tx: tx, account: account}
}

// FXFallbacks implements BalanceCalculator.
func (c *ForwardCalculator) FXFallbacks() int {
	return c.fallbacks
}

// Calculate implements BalanceCalculator.
//
// The start date resolves in three tiers. A window start whose previous day has
// a row continues from that row. Otherwise the day after the latest row before
// the window start continues from that row. Otherwise the calculation begins
// at the opening date from zero, with the opening balance applied as that
// day's valuation.
func (c *ForwardCalculator) Calculate(ctx context.Context, req CalculateRequest) ([]*domain.Balance, error) {
	c.fallbacks = 0

	start, seed, err := c.resolveStart(ctx, req.WindowStart)
	if err != nil {
		return nil, err
	}

	end, err := c.resolveEnd(ctx, req, start)
	if err != nil {
		return nil, err
	}

	if end.Before(start) {
		return nil, nil
	}

	cache, err := NewSyncCache(ctx, c.deps.Cache, c.account, start, end)
	if err != nil {
		return nil, err
	}
	c.fallbacks = cache.FallbackCount()

	base := newCalculatorBase(c.account, cache)
	opening := domain.DateOf(c.account.OpeningDate)

	startCash, startNonCash := decimal.Zero, decimal.Zero
	if seed != nil {
		startCash, startNonCash = seed.CashBalance, seed.NonCashBalance()
	}

	rows := make([]*domain.Balance, 0, domain.DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = domain.NextDay(d) {
		flows := base.flowsFor(d)

		total := startCash.Add(base.netCash(flows)).Add(startNonCash).Add(base.netNonCash(flows))
		if v := cache.Valuation(d); v != nil {
			total = v.Amount
		} else if seed == nil && d.Equal(opening) {
			total = c.account.OpeningBalance
		}

		endCash := base.cashFromTotal(total, d)
		endNonCash := total.Sub(endCash)

		rows = append(rows, base.buildRow(d, startCash, startNonCash, endCash, endNonCash, flows))
		startCash, startNonCash = endCash, endNonCash
	}

	return rows, nil
}

func (c *ForwardCalculator) resolveStart(ctx context.Context, windowStart *time.Time) (time.Time, *domain.Balance, error) {
	opening := domain.DateOf(c.account.OpeningDate)
	if windowStart == nil || !domain.DateOf(*windowStart).After(opening) {
		return opening, nil, nil
	}

	start := domain.DateOf(*windowStart)
	prev, err := c.deps.Balances.GetOnOrBefore(ctx, c.tx, c.account.ID, c.account.Currency, domain.PrevDay(start))
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return opening, nil, nil
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to load anchor balance: %w", err)
	}

	if prev.Date.Before(opening) {
		return opening, nil, nil
	}
	return domain.NextDay(prev.Date), prev, nil
}

// resolveEnd picks the last day to compute. Without an explicit end it is the
// latest entry or holding date, or today when the ledger is empty. A windowed
// pass also runs through the latest stored row, since every stored day after
// the window start depends on the days being recomputed.
func (c *ForwardCalculator) resolveEnd(ctx context.Context, req CalculateRequest, start time.Time) (time.Time, error) {
	if req.WindowEnd != nil {
		return domain.DateOf(*req.WindowEnd), nil
	}

	end, err := c.ledgerEnd(ctx, start)
	if err != nil {
		return time.Time{}, err
	}
	if req.WindowStart == nil {
		return end, nil
	}

	stored, err := c.deps.Balances.GetLatest(ctx, c.tx, c.account.ID, c.account.Currency)
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return end, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load latest balance: %w", err)
	}
	return domain.MaxDate(end, domain.DateOf(stored.Date)), nil
}

func (c *ForwardCalculator) ledgerEnd(ctx context.Context, start time.Time) (time.Time, error) {

	var latest *time.Time

	entryDate, err := c.deps.Cache.Entries.LatestDate(ctx, c.account.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load latest entry date: %w", err)
	}
	latest = entryDate

	if c.deps.Cache.Holdings != nil {
		holdingDate, err := c.deps.Cache.Holdings.LatestDate(ctx, c.account.ID)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to load latest holding date: %w", err)
		}
		if holdingDate != nil && (latest == nil || holdingDate.After(*latest)) {
			latest = holdingDate
		}
	}

	if latest == nil {
		return domain.MaxDate(c.deps.today(), start), nil
	}
	return domain.MaxDate(domain.DateOf(*latest), start), nil
}
