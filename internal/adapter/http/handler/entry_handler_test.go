package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

type entryServiceStub struct {
	recordFn   func(ctx context.Context, input usecase.RecordEntryInput) (*domain.Entry, error)
	listFn     func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error)
	balancesFn func(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Balance, error)
	historyFn  func(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error)
}

func (s *entryServiceStub) RecordEntry(ctx context.Context, input usecase.RecordEntryInput) (*domain.Entry, error) {
	return s.recordFn(ctx, input)
}

func (s *entryServiceStub) ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error) {
	return s.listFn(ctx, input)
}

func (s *entryServiceStub) ListBalances(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Balance, error) {
	return s.balancesFn(ctx, accountID, from, to)
}

func (s *entryServiceStub) GetHistoricalBalance(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	return s.historyFn(ctx, accountID, at)
}

func freezeToday(t *testing.T, d time.Time) {
	t.Helper()
	prev := today
	today = func() time.Time { return d }
	t.Cleanup(func() { today = prev })
}

func TestEntryHandler_Record(t *testing.T) {
	var captured usecase.RecordEntryInput
	handler := NewEntryHandler(&entryServiceStub{
		recordFn: func(ctx context.Context, input usecase.RecordEntryInput) (*domain.Entry, error) {
			captured = input
			return &domain.Entry{
				ID:        "e-1",
				AccountID: input.AccountID,
				Date:      input.Date,
				Amount:    input.Amount,
				Currency:  input.Currency,
				Kind:      input.Kind,
			}, nil
		},
	})

	body := `{"date":"2024-02-01","amount":"-42.50","currency":"USD","kind":"transaction","name":"groceries"}`
	req := httptest.NewRequest(http.MethodPost, "/accounts/acc-1/entries", bytes.NewBufferString(body))
	req = setChiURLParam(req, "id", "acc-1")
	rec := httptest.NewRecorder()

	handler.Record(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.AccountID != "acc-1" || captured.Amount.String() != "-42.5" {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "e-1" || resp.Date != "2024-02-01" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEntryHandler_Record_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{name: "malformed json", body: "{", wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"date":"2024-02-01","amount":"1","bogus":true}`, wantStatus: http.StatusBadRequest},
		{name: "bad date", body: `{"date":"02/01/2024","amount":"1","kind":"transaction"}`, wantStatus: http.StatusBadRequest},
		{
			name:       "unknown account",
			body:       `{"date":"2024-02-01","amount":"1","currency":"USD","kind":"transaction"}`,
			serviceErr: domain.ErrAccountNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "currency mismatch",
			body:       `{"date":"2024-02-01","amount":"1","currency":"EUR","kind":"transaction"}`,
			serviceErr: domain.ErrCurrencyMismatch,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewEntryHandler(&entryServiceStub{
				recordFn: func(ctx context.Context, input usecase.RecordEntryInput) (*domain.Entry, error) {
					if tt.serviceErr == nil {
						t.Fatal("RecordEntry should not be called")
					}
					return nil, tt.serviceErr
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/accounts/acc-1/entries", bytes.NewBufferString(tt.body))
			req = setChiURLParam(req, "id", "acc-1")
			rec := httptest.NewRecorder()

			handler.Record(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEntryHandler_ListByAccount_DefaultRange(t *testing.T) {
	freezeToday(t, domain.Date(2024, time.June, 30))

	var captured usecase.ListEntriesInput
	handler := NewEntryHandler(&entryServiceStub{
		listFn: func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error) {
			captured = input
			return []*domain.Entry{{ID: "e-1", Date: input.To}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts/acc-1/entries", nil)
	req = setChiURLParam(req, "id", "acc-1")
	rec := httptest.NewRecorder()

	handler.ListByAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := domain.FormatDate(captured.To); got != "2024-06-30" {
		t.Errorf("expected to=2024-06-30, got %s", got)
	}
	if got := domain.FormatDate(captured.From); got != "2024-04-01" {
		t.Errorf("expected from=2024-04-01, got %s", got)
	}

	var resp []dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || len(resp) != 1 {
		t.Fatalf("expected one entry, got %s (%v)", rec.Body.String(), err)
	}
}

func TestEntryHandler_ListByAccount_InvalidDate(t *testing.T) {
	handler := NewEntryHandler(&entryServiceStub{
		listFn: func(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error) {
			t.Fatal("ListEntries should not be called")
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts/acc-1/entries?from=yesterday", nil)
	req = setChiURLParam(req, "id", "acc-1")
	rec := httptest.NewRecorder()

	handler.ListByAccount(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestEntryHandler_ListBalances(t *testing.T) {
	handler := NewEntryHandler(&entryServiceStub{
		balancesFn: func(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Balance, error) {
			if domain.FormatDate(from) != "2024-01-01" || domain.FormatDate(to) != "2024-01-31" {
				t.Fatalf("unexpected range %s..%s", domain.FormatDate(from), domain.FormatDate(to))
			}
			return []*domain.Balance{
				{AccountID: accountID, Date: from, Currency: "USD", Balance: decimal.NewFromInt(100)},
				{AccountID: accountID, Date: to, Currency: "USD", Balance: decimal.NewFromInt(80)},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts/acc-1/balances?from=2024-01-01&to=2024-01-31", nil)
	req = setChiURLParam(req, "id", "acc-1")
	rec := httptest.NewRecorder()

	handler.ListBalances(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp []dto.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 || !resp[1].Balance.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("unexpected balances %+v", resp)
	}
}

func TestEntryHandler_GetHistoricalBalance(t *testing.T) {
	freezeToday(t, domain.Date(2024, time.March, 1))

	tests := []struct {
		name     string
		query    string
		wantDate string
	}{
		{name: "explicit date", query: "?at=2024-01-15", wantDate: "2024-01-15"},
		{name: "defaults to today", query: "", wantDate: "2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewEntryHandler(&entryServiceStub{
				historyFn: func(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
					return decimal.RequireFromString("12.34"), nil
				},
			})

			req := httptest.NewRequest(http.MethodGet, "/accounts/acc-1/balance/history"+tt.query, nil)
			req = setChiURLParam(req, "id", "acc-1")
			rec := httptest.NewRecorder()

			handler.GetHistoricalBalance(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var resp dto.HistoricalBalanceResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Date != tt.wantDate || resp.Balance.String() != "12.34" {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}
