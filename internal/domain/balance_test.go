package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBalance_Closes(t *testing.T) {
	tests := []struct {
		name  string
		row   Balance
		close bool
	}{
		{
			name: "asset cash day",
			row: Balance{
				Balance: d("150"), CashBalance: d("150"),
				StartCashBalance: d("100"),
				CashInflows:      d("80"), CashOutflows: d("30"),
				FlowsFactor: 1,
			},
			close: true,
		},
		{
			name: "liability non-cash day",
			row: Balance{
				Balance: d("900"), CashBalance: d("0"),
				StartNonCashBalance: d("1000"),
				NonCashInflows:      d("100"),
				FlowsFactor:         -1,
			},
			close: true,
		},
		{
			name: "valuation with adjustment",
			row: Balance{
				Balance: d("500"), CashBalance: d("500"),
				StartCashBalance: d("400"),
				CashInflows:      d("20"),
				CashAdjustments:  d("80"),
				FlowsFactor:      1,
			},
			close: true,
		},
		{
			name: "investment market move",
			row: Balance{
				Balance: d("1100"), CashBalance: d("100"),
				StartCashBalance: d("100"), StartNonCashBalance: d("950"),
				NetMarketFlows: d("50"),
				FlowsFactor:    1,
			},
			close: true,
		},
		{
			name: "unexplained drift",
			row: Balance{
				Balance: d("160"), CashBalance: d("160"),
				StartCashBalance: d("100"),
				CashInflows:      d("50"),
				FlowsFactor:      1,
			},
			close: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.Closes(); got != tt.close {
				t.Fatalf("Closes() = %v, want %v", got, tt.close)
			}
		})
	}
}

func TestBalance_Partition(t *testing.T) {
	row := Balance{Balance: d("1234.56"), CashBalance: d("234.56")}

	if !row.CashBalance.Add(row.NonCashBalance()).Equal(row.Balance) {
		t.Fatal("cash + non-cash must equal total")
	}
	if !row.NonCashBalance().Equal(d("1000")) {
		t.Fatalf("non-cash = %s, want 1000", row.NonCashBalance())
	}
}

func TestBalance_FlowMagnitude(t *testing.T) {
	row := Balance{
		CashInflows: d("10"), CashOutflows: d("20"),
		NonCashInflows: d("5"), NonCashOutflows: d("1"),
		NetMarketFlows: d("-4"), CashAdjustments: d("1000"),
	}
	if got := row.FlowMagnitude(); !got.Equal(d("40")) {
		t.Fatalf("flow magnitude = %s, want 40", got)
	}
}

func TestBalance_SameValues(t *testing.T) {
	a := Balance{AccountID: "a", Date: Date(2025, 1, 1), Currency: "USD", Balance: d("1.0"), CashBalance: d("1"), FlowsFactor: 1}
	b := a
	b.ID = "other"
	b.Balance = d("1.00")
	if !a.SameValues(&b) {
		t.Fatal("rows differing only by id and scale should be equal")
	}
	b.CashBalance = d("2")
	if a.SameValues(&b) {
		t.Fatal("rows with different cash should differ")
	}
}

func TestParseSyncStrategy(t *testing.T) {
	if s, err := ParseSyncStrategy(""); err != nil || s != SyncStrategyForward {
		t.Fatalf("empty strategy should default to forward, got %s %v", s, err)
	}
	if s, err := ParseSyncStrategy("reverse"); err != nil || s != SyncStrategyReverse {
		t.Fatalf("got %s %v", s, err)
	}
	if _, err := ParseSyncStrategy("sideways"); err != ErrInvalidStrategy {
		t.Fatalf("expected ErrInvalidStrategy, got %v", err)
	}
}
