package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the materialized end-of-day state of an account in one currency.
// Rows are keyed by (AccountID, Date, Currency).
type Balance struct {
	ID                  string
	AccountID           string
	Date                time.Time
	Currency            string
	Balance             decimal.Decimal
	CashBalance         decimal.Decimal
	StartCashBalance    decimal.Decimal
	StartNonCashBalance decimal.Decimal
	CashInflows         decimal.Decimal
	CashOutflows        decimal.Decimal
	NonCashInflows      decimal.Decimal
	NonCashOutflows     decimal.Decimal
	NetMarketFlows      decimal.Decimal
	CashAdjustments     decimal.Decimal
	NonCashAdjustments  decimal.Decimal
	FlowsFactor         int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NonCashBalance is the part of the total that is not cash.
func (b *Balance) NonCashBalance() decimal.Decimal {
	return b.Balance.Sub(b.CashBalance)
}

// StartBalance is the start-of-day total.
func (b *Balance) StartBalance() decimal.Decimal {
	return b.StartCashBalance.Add(b.StartNonCashBalance)
}

// FlowMagnitude sums the absolute flow components of the row, adjustments excluded.
func (b *Balance) FlowMagnitude() decimal.Decimal {
	return b.CashInflows.Abs().
		Add(b.CashOutflows.Abs()).
		Add(b.NonCashInflows.Abs()).
		Add(b.NonCashOutflows.Abs()).
		Add(b.NetMarketFlows.Abs())
}

// Closes reports whether both the cash and non-cash recurrences reconcile
// exactly from the start-of-day values to the end-of-day values.
func (b *Balance) Closes() bool {
	factor := decimal.NewFromInt(int64(b.FlowsFactor))

	cash := b.StartCashBalance.
		Add(b.CashInflows.Sub(b.CashOutflows).Mul(factor)).
		Add(b.CashAdjustments)

	nonCash := b.StartNonCashBalance.
		Add(b.NonCashInflows.Sub(b.NonCashOutflows).Mul(factor)).
		Add(b.NetMarketFlows).
		Add(b.NonCashAdjustments)

	return cash.Equal(b.CashBalance) && nonCash.Equal(b.NonCashBalance())
}

// SameValues reports whether two rows carry identical persisted values,
// ignoring identifiers and timestamps.
func (b *Balance) SameValues(o *Balance) bool {
	return b.AccountID == o.AccountID &&
		b.Date.Equal(o.Date) &&
		b.Currency == o.Currency &&
		b.Balance.Equal(o.Balance) &&
		b.CashBalance.Equal(o.CashBalance) &&
		b.StartCashBalance.Equal(o.StartCashBalance) &&
		b.StartNonCashBalance.Equal(o.StartNonCashBalance) &&
		b.CashInflows.Equal(o.CashInflows) &&
		b.CashOutflows.Equal(o.CashOutflows) &&
		b.NonCashInflows.Equal(o.NonCashInflows) &&
		b.NonCashOutflows.Equal(o.NonCashOutflows) &&
		b.NetMarketFlows.Equal(o.NetMarketFlows) &&
		b.CashAdjustments.Equal(o.CashAdjustments) &&
		b.NonCashAdjustments.Equal(o.NonCashAdjustments) &&
		b.FlowsFactor == o.FlowsFactor
}

// SyncStrategy selects the balance calculator direction.
type SyncStrategy string

const (
	SyncStrategyForward SyncStrategy = "forward"
	SyncStrategyReverse SyncStrategy = "reverse"
)

// ParseSyncStrategy returns the strategy for s; empty means forward.
func ParseSyncStrategy(s string) (SyncStrategy, error) {
	switch SyncStrategy(s) {
	case "", SyncStrategyForward:
		return SyncStrategyForward, nil
	case SyncStrategyReverse:
		return SyncStrategyReverse, nil
	}
	return "", ErrInvalidStrategy
}

// SyncNotice is the user-facing message sent when a requested windowed sync
// fell back to a full rebuild.
type SyncNotice struct {
	AccountID   string     `json:"account_id"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	Reason      string     `json:"reason"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
}
