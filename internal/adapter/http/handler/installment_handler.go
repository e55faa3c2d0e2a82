package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/usecase"
)

// InstallmentService defines the behavior needed by InstallmentHandler.
type InstallmentService interface {
	PostInstallment(ctx context.Context, input usecase.PostInstallmentInput) (*usecase.PostInstallmentResult, error)
}

// InstallmentHandler handles installment postings.
type InstallmentHandler struct {
	postingUC InstallmentService
}

// NewInstallmentHandler creates a new InstallmentHandler.
func NewInstallmentHandler(postingUC InstallmentService) *InstallmentHandler {
	return &InstallmentHandler{postingUC: postingUC}
}

// Post pays an installment. Reposting returns the original transfer with 200.
func (h *InstallmentHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req dto.PostInstallmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid posting", err)
		return
	}

	result, err := h.postingUC.PostInstallment(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to post installment", err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyPosted {
		status = http.StatusOK
	}

	writeJSON(w, status, dto.PostInstallmentResponse{
		Installment:   dto.InstallmentFromDomain(result.Installment),
		TransferID:    result.TransferID,
		AlreadyPosted: result.AlreadyPosted,
	})
}
