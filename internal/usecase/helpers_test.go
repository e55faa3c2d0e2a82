package usecase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

var errBoom = errors.New("boom")

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func dayPtr(t *testing.T, s string) *time.Time {
	t.Helper()
	d := day(t, s)
	return &d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newAccount(t *testing.T, id string, kind domain.AccountKind, opening string, openedOn string) *domain.Account {
	t.Helper()
	return &domain.Account{
		ID:             id,
		Name:           id,
		Currency:       "USD",
		Kind:           kind,
		Balance:        dec(opening),
		OpeningBalance: dec(opening),
		OpeningDate:    day(t, openedOn),
		Version:        1,
	}
}

func newEntry(t *testing.T, id, accountID, date, amount string, kind domain.EntryKind) *domain.Entry {
	t.Helper()
	return &domain.Entry{
		ID:        id,
		AccountID: accountID,
		Date:      day(t, date),
		Amount:    dec(amount),
		Currency:  "USD",
		Kind:      kind,
		Name:      id,
	}
}

func assertDecimal(t *testing.T, name string, want string, got decimal.Decimal) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got)
	}
}

func assertCloses(t *testing.T, rows []*domain.Balance) {
	t.Helper()
	for _, row := range rows {
		if !row.Closes() {
			t.Fatalf("row %s does not close: %+v", domain.FormatDate(row.Date), row)
		}
	}
}
