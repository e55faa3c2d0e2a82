package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// RateStore persists daily fixings.
type RateStore interface {
	Save(ctx context.Context, from, to string, date time.Time, rate decimal.Decimal) error
}

// ExchangeRateHandler stores and resolves exchange rates.
type ExchangeRateHandler struct {
	store    RateStore
	provider usecase.ExchangeRateProvider
}

// NewExchangeRateHandler creates a new ExchangeRateHandler.
func NewExchangeRateHandler(store RateStore, provider usecase.ExchangeRateProvider) *ExchangeRateHandler {
	return &ExchangeRateHandler{store: store, provider: provider}
}

// Save stores a fixing for one date.
func (h *ExchangeRateHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req dto.SaveExchangeRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	date, rate, err := req.Parse()
	if err != nil {
		writeDomainError(w, "invalid exchange rate", err)
		return
	}

	from, to := strings.ToUpper(req.From), strings.ToUpper(req.To)
	if err := h.store.Save(r.Context(), from, to, date, rate); err != nil {
		writeDomainError(w, "failed to save exchange rate", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ExchangeRateResponse{
		From: from,
		To:   to,
		Date: domain.FormatDate(date),
		Rate: rate,
	})
}

// Get resolves the rate in effect on ?date= (default today).
func (h *ExchangeRateHandler) Get(w http.ResponseWriter, r *http.Request) {
	from := strings.ToUpper(chi.URLParam(r, "from"))
	to := strings.ToUpper(chi.URLParam(r, "to"))
	if err := domain.ValidateCurrency(from); err != nil {
		writeDomainError(w, "invalid currency", err)
		return
	}
	if err := domain.ValidateCurrency(to); err != nil {
		writeDomainError(w, "invalid currency", err)
		return
	}

	date, err := parseDateQuery(r, "date", today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date parameter", err.Error())
		return
	}

	rate, err := h.provider.Rate(r.Context(), from, to, date)
	if err != nil {
		writeDomainError(w, "failed to resolve exchange rate", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ExchangeRateResponse{
		From: from,
		To:   to,
		Date: domain.FormatDate(date),
		Rate: rate,
	})
}
