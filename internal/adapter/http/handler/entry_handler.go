package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// defaultLookback is the range served when a list request names no dates.
const defaultLookback = 90 * 24 * time.Hour

var today = func() time.Time { return domain.DateOf(time.Now().UTC()) }

// EntryService defines the behavior needed by EntryHandler.
type EntryService interface {
	RecordEntry(ctx context.Context, input usecase.RecordEntryInput) (*domain.Entry, error)
	ListEntries(ctx context.Context, input usecase.ListEntriesInput) ([]*domain.Entry, error)
	ListBalances(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Balance, error)
	GetHistoricalBalance(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error)
}

// EntryHandler handles entry and balance read requests.
type EntryHandler struct {
	entryUC EntryService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryUC EntryService) *EntryHandler {
	return &EntryHandler{entryUC: entryUC}
}

// Record stores an entry on the account in the path.
func (h *EntryHandler) Record(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var req dto.RecordEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(accountID)
	if err != nil {
		writeDomainError(w, "invalid entry", err)
		return
	}

	entry, err := h.entryUC.RecordEntry(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// ListByAccount lists entries for an account within ?from=&to=.
func (h *EntryHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	entries, err := h.entryUC.ListEntries(r.Context(), usecase.ListEntriesInput{
		AccountID: accountID,
		From:      from,
		To:        to,
	})
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// ListBalances lists materialized balance rows within ?from=&to=.
func (h *EntryHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	rows, err := h.entryUC.ListBalances(r.Context(), accountID, from, to)
	if err != nil {
		writeDomainError(w, "failed to list balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(rows))
}

// GetHistoricalBalance returns the end-of-day balance at ?at= (default today).
func (h *EntryHandler) GetHistoricalBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	at, err := parseDateQuery(r, "at", today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid at parameter", err.Error())
		return
	}

	balance, err := h.entryUC.GetHistoricalBalance(r.Context(), accountID, at)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.HistoricalBalanceResponse{
		AccountID: accountID,
		Date:      domain.FormatDate(at),
		Balance:   balance,
	})
}

func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	to, err := parseDateQuery(r, "to", today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to parameter", err.Error())
		return time.Time{}, time.Time{}, false
	}
	from, err := parseDateQuery(r, "from", to.Add(-defaultLookback))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from parameter", err.Error())
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
