package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// LoanScheduleService defines schedule generation and loan lookup.
type LoanScheduleService interface {
	Preview(ctx context.Context, params domain.ScheduleParams) ([]domain.ScheduleRow, error)
	CreateLoan(ctx context.Context, input usecase.CreateLoanInput) (*domain.Loan, []*domain.LoanInstallment, error)
	GetLoan(ctx context.Context, id string) (*domain.Loan, []*domain.LoanInstallment, error)
}

// LoanPaymentService defines off-plan principal movements.
type LoanPaymentService interface {
	ExtraPayment(ctx context.Context, input usecase.ExtraPaymentInput) (*usecase.LoanPaymentResult, error)
	AdditionalBorrowing(ctx context.Context, input usecase.BorrowingInput) (*usecase.LoanPaymentResult, error)
}

// LoanReconciler checks principal conservation.
type LoanReconciler interface {
	ReconcileLoan(ctx context.Context, loanID string) (*usecase.LoanReconciliation, error)
}

// LoanHandler handles loan-related HTTP requests.
type LoanHandler struct {
	scheduleUC  LoanScheduleService
	paymentUC   LoanPaymentService
	reconcileUC LoanReconciler
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(scheduleUC LoanScheduleService, paymentUC LoanPaymentService, reconcileUC LoanReconciler) *LoanHandler {
	return &LoanHandler{
		scheduleUC:  scheduleUC,
		paymentUC:   paymentUC,
		reconcileUC: reconcileUC,
	}
}

// Preview generates a schedule without storing anything.
func (h *LoanHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req dto.ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	params, err := req.ToScheduleParams()
	if err != nil {
		writeDomainError(w, "invalid schedule terms", err)
		return
	}

	rows, err := h.scheduleUC.Preview(r.Context(), params)
	if err != nil {
		writeDomainError(w, "failed to generate schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ScheduleFromRows(rows))
}

// Create books a loan and its installment plan.
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid loan terms", err)
		return
	}

	loan, installments, err := h.scheduleUC.CreateLoan(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to create loan", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.LoanFromDomain(loan, installments))
}

// Get returns a loan with its full plan.
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	loan, installments, err := h.scheduleUC.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get loan", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanFromDomain(loan, installments))
}

// Installments lists the loan's installments only.
func (h *LoanHandler) Installments(w http.ResponseWriter, r *http.Request) {
	_, installments, err := h.scheduleUC.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get installments", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InstallmentsFromDomain(installments))
}

// ExtraPayment repays principal outside the plan.
func (h *LoanHandler) ExtraPayment(w http.ResponseWriter, r *http.Request) {
	var req dto.ExtraPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid extra payment", err)
		return
	}

	result, err := h.paymentUC.ExtraPayment(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to apply extra payment", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanPaymentFromResult(result))
}

// Borrowing draws additional principal.
func (h *LoanHandler) Borrowing(w http.ResponseWriter, r *http.Request) {
	var req dto.BorrowingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid borrowing", err)
		return
	}

	result, err := h.paymentUC.AdditionalBorrowing(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to apply borrowing", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanPaymentFromResult(result))
}

// Reconcile checks the loan's principal conservation.
func (h *LoanHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconcileUC.ReconcileLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to reconcile loan", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanReconciliationResponse{
		LoanID:             result.LoanID,
		Principal:          result.Principal,
		PlannedPrincipal:   result.PlannedPrincipal,
		ExtraPrincipalPaid: result.ExtraPrincipalPaid,
		Difference:         result.Difference,
		IsReconciled:       result.IsReconciled,
	})
}
