package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
)

// ConversionPolicy decides what happens when an exchange rate is missing.
type ConversionPolicy string

const (
	// ConversionStrict fails the calculation with domain.ErrMissingExchangeRate.
	ConversionStrict ConversionPolicy = "strict"
	// ConversionBestEffort converts 1:1, logs a warning and counts the fallback.
	ConversionBestEffort ConversionPolicy = "best_effort"
)

// ParseConversionPolicy returns the policy for s; empty means best_effort.
func ParseConversionPolicy(s string) (ConversionPolicy, error) {
	switch p := ConversionPolicy(s); p {
	case "":
		return ConversionBestEffort, nil
	case ConversionStrict, ConversionBestEffort:
		return p, nil
	}
	return "", fmt.Errorf("unknown conversion policy %q", s)
}

// SyncCacheSource bundles what a SyncCache reads from.
type SyncCacheSource struct {
	Entries  EntryRepository
	Holdings HoldingRepository
	Rates    ExchangeRateProvider
	Policy   ConversionPolicy
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// SyncCache is a read-only view of one account's entries and holdings over a
// date range, converted to the account currency. It is loaded once and must
// not outlive the calculation pass that built it.
type SyncCache struct {
	account    *domain.Account
	valuations map[string]*domain.Entry
	entries    map[string][]*domain.Entry
	holdings   map[string][]*domain.Holding
	fallbacks  int
}

// NewSyncCache loads entries in [from, to] and holdings in [from-1, to].
// Holdings are only read for investment accounts.
func NewSyncCache(ctx context.Context, src SyncCacheSource, account *domain.Account, from, to time.Time) (*SyncCache, error) {
	c := &SyncCache{
		account:    account,
		valuations: make(map[string]*domain.Entry),
		entries:    make(map[string][]*domain.Entry),
		holdings:   make(map[string][]*domain.Holding),
	}

	conv := &converter{src: src, account: account}

	entries, err := src.Entries.ListByAccountInRange(ctx, account.ID, domain.DateOf(from), domain.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	for _, e := range entries {
		amount, err := conv.convert(ctx, e.Amount, e.Currency, e.Date)
		if err != nil {
			return nil, err
		}

		converted := *e
		converted.Amount = amount
		converted.Currency = account.Currency

		key := domain.FormatDate(e.Date)
		if converted.IsValuation() {
			// Later rows win when a day carries more than one valuation.
			c.valuations[key] = &converted
			continue
		}
		c.entries[key] = append(c.entries[key], &converted)
	}

	if src.Holdings != nil && account.BalanceType() == domain.BalanceTypeInvestment {
		holdings, err := src.Holdings.ListByAccountInRange(ctx, account.ID, domain.PrevDay(from), domain.DateOf(to))
		if err != nil {
			return nil, fmt.Errorf("failed to load holdings: %w", err)
		}

		for _, h := range holdings {
			amount, err := conv.convert(ctx, h.Amount, h.Currency, h.Date)
			if err != nil {
				return nil, err
			}

			converted := *h
			converted.Amount = amount
			converted.Currency = account.Currency

			key := domain.FormatDate(h.Date)
			c.holdings[key] = append(c.holdings[key], &converted)
		}
	}

	c.fallbacks = conv.fallbacks
	return c, nil
}

// Valuation returns the valuation entry on date, or nil.
func (c *SyncCache) Valuation(date time.Time) *domain.Entry {
	return c.valuations[domain.FormatDate(date)]
}

// Entries returns the transactions and trades on date.
func (c *SyncCache) Entries(date time.Time) []*domain.Entry {
	return c.entries[domain.FormatDate(date)]
}

// Holdings returns the holdings on date.
func (c *SyncCache) Holdings(date time.Time) []*domain.Holding {
	return c.holdings[domain.FormatDate(date)]
}

// HoldingsValue sums holding amounts on date.
func (c *SyncCache) HoldingsValue(date time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, h := range c.Holdings(date) {
		total = total.Add(h.Amount)
	}
	return total
}

// FallbackCount is the number of amounts converted 1:1 for lack of a rate.
func (c *SyncCache) FallbackCount() int {
	return c.fallbacks
}

type converter struct {
	src       SyncCacheSource
	account   *domain.Account
	fallbacks int
}

func (cv *converter) convert(ctx context.Context, amount decimal.Decimal, currency string, date time.Time) (decimal.Decimal, error) {
	if currency == "" || currency == cv.account.Currency {
		return amount, nil
	}

	var (
		rate decimal.Decimal
		err  = domain.ErrMissingExchangeRate
	)
	if cv.src.Rates != nil {
		rate, err = cv.src.Rates.Rate(ctx, currency, cv.account.Currency, domain.DateOf(date))
	}

	switch {
	case err == nil:
		return domain.RoundMoney(amount.Mul(rate), cv.account.Currency), nil
	case !errors.Is(err, domain.ErrMissingExchangeRate):
		return decimal.Zero, fmt.Errorf("failed to look up %s/%s rate: %w", currency, cv.account.Currency, err)
	case cv.src.Policy == ConversionStrict:
		return decimal.Zero, fmt.Errorf("%w: %s to %s on %s", domain.ErrMissingExchangeRate,
			currency, cv.account.Currency, domain.FormatDate(date))
	}

	cv.fallbacks++
	cv.src.Logger.Warn().
		Str("account_id", cv.account.ID).
		Str("from", currency).
		Str("to", cv.account.Currency).
		Str("date", domain.FormatDate(date)).
		Msg("missing exchange rate, converting 1:1")
	if cv.src.Metrics != nil {
		cv.src.Metrics.FXFallbacks.WithLabelValues(currency, cv.account.Currency).Inc()
	}

	return amount, nil
}
