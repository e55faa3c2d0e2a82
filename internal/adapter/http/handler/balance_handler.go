package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/syncworker"
	"github.com/iho/ledgerbook/internal/usecase"
)

const (
	accountPageSize = 500
	noticeLimit     = 20
)

// Materializer rebuilds an account's balance rows.
type Materializer interface {
	Materialize(ctx context.Context, in usecase.MaterializeInput) (*usecase.MaterializeResult, error)
}

// BulkSyncer rebuilds many accounts with bounded parallelism.
type BulkSyncer interface {
	usecase.SyncScheduler
	SyncAll(ctx context.Context, accountIDs []string, strategy domain.SyncStrategy) (*syncworker.SyncAllResult, error)
}

// AccountLister pages through accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context, input usecase.ListAccountsInput) ([]*domain.Account, error)
}

// NoticeReader returns recent downgrade notices for an account.
type NoticeReader interface {
	RecentNotices(ctx context.Context, accountID string, limit int) ([]domain.SyncNotice, error)
}

// BalanceHandler triggers balance materialization.
type BalanceHandler struct {
	materializer Materializer
	syncer       BulkSyncer
	accounts     AccountLister
	notices      NoticeReader
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(materializer Materializer, syncer BulkSyncer, accounts AccountLister, notices NoticeReader) *BalanceHandler {
	return &BalanceHandler{
		materializer: materializer,
		syncer:       syncer,
		accounts:     accounts,
		notices:      notices,
	}
}

// Sync rebuilds one account. With "async": true the request is queued and
// answered with 202.
func (h *BalanceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var req dto.SyncBalancesRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(accountID)
	if err != nil {
		writeDomainError(w, "invalid sync request", err)
		return
	}

	if req.Async {
		err := h.syncer.ScheduleSync(r.Context(), usecase.SyncRequest{
			AccountID:   input.AccountID,
			Strategy:    input.Strategy,
			WindowStart: input.WindowStart,
			WindowEnd:   input.WindowEnd,
			Reason:      "api",
		})
		switch {
		case errors.Is(err, syncworker.ErrQueueFull), errors.Is(err, syncworker.ErrPoolStopped):
			writeError(w, http.StatusServiceUnavailable, "sync queue unavailable", err.Error())
			return
		case err != nil:
			writeDomainError(w, "failed to queue sync", err)
			return
		}
		writeJSON(w, http.StatusAccepted, dto.SyncQueuedResponse{AccountID: accountID, Status: "queued"})
		return
	}

	result, err := h.materializer.Materialize(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to sync balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SyncFromResult(result))
}

// SyncAll rebuilds every account in full.
func (h *BalanceHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	var req dto.SyncAllRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	strategy, err := domain.ParseSyncStrategy(req.Strategy)
	if err != nil {
		writeDomainError(w, "invalid strategy", err)
		return
	}

	var ids []string
	for offset := 0; ; offset += accountPageSize {
		page, err := h.accounts.ListAccounts(r.Context(), usecase.ListAccountsInput{Limit: accountPageSize, Offset: offset})
		if err != nil {
			writeDomainError(w, "failed to list accounts", err)
			return
		}
		for _, a := range page {
			ids = append(ids, a.ID)
		}
		if len(page) < accountPageSize {
			break
		}
	}

	result, err := h.syncer.SyncAll(r.Context(), ids, strategy)
	if err != nil {
		writeDomainError(w, "sync all aborted", err)
		return
	}

	failed := make(map[string]string, len(result.Failed))
	for id, err := range result.Failed {
		failed[id] = err.Error()
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}

	writeJSON(w, http.StatusOK, dto.SyncAllResponse{
		Synced:  result.Synced,
		Skipped: skipped,
		Failed:  failed,
	})
}

// Notices lists the account's recent full-rebuild notices.
func (h *BalanceHandler) Notices(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	notices, err := h.notices.RecentNotices(r.Context(), accountID, parseIntQuery(r, "limit", noticeLimit))
	if err != nil {
		writeDomainError(w, "failed to load notices", err)
		return
	}
	if notices == nil {
		notices = []domain.SyncNotice{}
	}

	writeJSON(w, http.StatusOK, dto.NoticesResponse{Notices: notices})
}
