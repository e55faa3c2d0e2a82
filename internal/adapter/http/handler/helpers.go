package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status mapDomainError picks.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, mapDomainError(err), message, err.Error())
}

var badRequestErrors = []error{
	domain.ErrInvalidAccountKind,
	domain.ErrInvalidOpeningAnchor,
	domain.ErrInvalidAccountName,
	domain.ErrInvalidCurrency,
	domain.ErrInvalidEntryKind,
	domain.ErrInvalidAmount,
	domain.ErrAmountTooLarge,
	domain.ErrMetadataTooLarge,
	domain.ErrInvalidDate,
	domain.ErrInvalidWindow,
	domain.ErrSameAccount,
	domain.ErrCurrencyMismatch,
	domain.ErrInvalidPrincipal,
	domain.ErrInvalidRate,
	domain.ErrInvalidTenor,
	domain.ErrInvalidFrequency,
	domain.ErrInvalidScheduleMethod,
	domain.ErrInvalidBalloon,
	domain.ErrInvalidStartDate,
	domain.ErrInvalidAllocation,
	domain.ErrExtraPaymentExceedsPrincipal,
	domain.ErrLoanAccountNotLiability,
	domain.ErrInvalidStrategy,
	domain.ErrInvalidInstallmentStatus,
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransferNotFound),
		errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrInstallmentNotFound),
		errors.Is(err, domain.ErrBalanceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBalanceSyncInProgress),
		errors.Is(err, domain.ErrIdempotencyConflict),
		errors.Is(err, domain.ErrOptimisticLock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInstallmentNotPostable),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrMissingExchangeRate):
		return http.StatusUnprocessableEntity
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseDateQuery parses a YYYY-MM-DD query parameter, falling back to def
// when it is absent.
func parseDateQuery(r *http.Request, key string, def time.Time) (time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return def, nil
	}
	return domain.ParseDate(val)
}

// decodeJSON decodes the body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
