package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := domain.FormatDate(*t)
	return &s
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Currency             string           `json:"currency"`
	Kind                 string           `json:"kind"`
	Classification       string           `json:"classification"`
	Balance              decimal.Decimal  `json:"balance"`
	CashBalance          decimal.Decimal  `json:"cash_balance"`
	OpeningBalance       decimal.Decimal  `json:"opening_balance"`
	OpeningDate          string           `json:"opening_date"`
	CurrentAnchorBalance *decimal.Decimal `json:"current_anchor_balance,omitempty"`
	CurrentAnchorDate    *string          `json:"current_anchor_date,omitempty"`
	Version              int64            `json:"version"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:                   a.ID,
		Name:                 a.Name,
		Currency:             a.Currency,
		Kind:                 string(a.Kind),
		Classification:       string(a.Classification()),
		Balance:              a.Balance,
		CashBalance:          a.CashBalance,
		OpeningBalance:       a.OpeningBalance,
		OpeningDate:          domain.FormatDate(a.OpeningDate),
		CurrentAnchorBalance: a.CurrentAnchorBalance,
		CurrentAnchorDate:    formatDatePtr(a.CurrentAnchorDate),
		Version:              a.Version,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"account_id"`
	TransferID *string         `json:"transfer_id,omitempty"`
	Date       string          `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Kind       string          `json:"kind"`
	Name       string          `json:"name"`
	Category   string          `json:"category,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:         e.ID,
		AccountID:  e.AccountID,
		TransferID: e.TransferID,
		Date:       domain.FormatDate(e.Date),
		Amount:     e.Amount,
		Currency:   e.Currency,
		Kind:       string(e.Kind),
		Name:       e.Name,
		Category:   e.Category,
		CreatedAt:  e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// BalanceResponse is one materialized end-of-day balance row.
type BalanceResponse struct {
	Date                string          `json:"date"`
	Currency            string          `json:"currency"`
	Balance             decimal.Decimal `json:"balance"`
	CashBalance         decimal.Decimal `json:"cash_balance"`
	StartCashBalance    decimal.Decimal `json:"start_cash_balance"`
	StartNonCashBalance decimal.Decimal `json:"start_non_cash_balance"`
	CashInflows         decimal.Decimal `json:"cash_inflows"`
	CashOutflows        decimal.Decimal `json:"cash_outflows"`
	NonCashInflows      decimal.Decimal `json:"non_cash_inflows"`
	NonCashOutflows     decimal.Decimal `json:"non_cash_outflows"`
	NetMarketFlows      decimal.Decimal `json:"net_market_flows"`
	CashAdjustments     decimal.Decimal `json:"cash_adjustments"`
	NonCashAdjustments  decimal.Decimal `json:"non_cash_adjustments"`
	FlowsFactor         int             `json:"flows_factor"`
}

// BalancesFromDomain converts balance rows to responses.
func BalancesFromDomain(rows []*domain.Balance) []*BalanceResponse {
	result := make([]*BalanceResponse, len(rows))
	for i, b := range rows {
		result[i] = &BalanceResponse{
			Date:                domain.FormatDate(b.Date),
			Currency:            b.Currency,
			Balance:             b.Balance,
			CashBalance:         b.CashBalance,
			StartCashBalance:    b.StartCashBalance,
			StartNonCashBalance: b.StartNonCashBalance,
			CashInflows:         b.CashInflows,
			CashOutflows:        b.CashOutflows,
			NonCashInflows:      b.NonCashInflows,
			NonCashOutflows:     b.NonCashOutflows,
			NetMarketFlows:      b.NetMarketFlows,
			CashAdjustments:     b.CashAdjustments,
			NonCashAdjustments:  b.NonCashAdjustments,
			FlowsFactor:         b.FlowsFactor,
		}
	}
	return result
}

// HistoricalBalanceResponse is the balance at one date.
type HistoricalBalanceResponse struct {
	AccountID string          `json:"account_id"`
	Date      string          `json:"date"`
	Balance   decimal.Decimal `json:"balance"`
}

// SyncResponse summarizes a completed materialization.
type SyncResponse struct {
	AccountID    string          `json:"account_id"`
	Plan         string          `json:"plan"`
	Passes       int             `json:"passes"`
	RowsUpserted int             `json:"rows_upserted"`
	RowsPurged   int64           `json:"rows_purged"`
	Downgraded   bool            `json:"downgraded"`
	FXFallbacks  int             `json:"fx_fallbacks"`
	FirstDate    *string         `json:"first_date,omitempty"`
	LastDate     *string         `json:"last_date,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
	DurationMS   int64           `json:"duration_ms"`
}

// SyncFromResult converts a materializer result.
func SyncFromResult(r *usecase.MaterializeResult) *SyncResponse {
	return &SyncResponse{
		AccountID:    r.AccountID,
		Plan:         r.Plan.String(),
		Passes:       r.Passes,
		RowsUpserted: r.RowsUpserted,
		RowsPurged:   r.RowsPurged,
		Downgraded:   r.Downgraded,
		FXFallbacks:  r.FXFallbacks,
		FirstDate:    formatDatePtr(r.FirstDate),
		LastDate:     formatDatePtr(r.LastDate),
		Balance:      r.Balance,
		CashBalance:  r.CashBalance,
		DurationMS:   r.Duration.Milliseconds(),
	}
}

// SyncQueuedResponse acknowledges an async sync request.
type SyncQueuedResponse struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status"`
}

// SyncAllResponse summarizes a bulk rebuild.
type SyncAllResponse struct {
	Synced  int               `json:"synced"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed"`
}

// ScheduleRowResponse is one previewed installment.
type ScheduleRowResponse struct {
	InstallmentNo int             `json:"installment_no"`
	DueDate       string          `json:"due_date"`
	Principal     decimal.Decimal `json:"principal"`
	Interest      decimal.Decimal `json:"interest"`
	Total         decimal.Decimal `json:"total"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

// ScheduleFromRows converts generator output.
func ScheduleFromRows(rows []domain.ScheduleRow) []*ScheduleRowResponse {
	result := make([]*ScheduleRowResponse, len(rows))
	for i, r := range rows {
		result[i] = &ScheduleRowResponse{
			InstallmentNo: r.InstallmentNo,
			DueDate:       domain.FormatDate(r.DueDate),
			Principal:     r.Principal,
			Interest:      r.Interest,
			Total:         r.Total,
			Outstanding:   r.Outstanding,
		}
	}
	return result
}

// InstallmentResponse represents a stored installment.
type InstallmentResponse struct {
	ID              string          `json:"id"`
	LoanID          string          `json:"loan_id"`
	InstallmentNo   int             `json:"installment_no"`
	DueDate         string          `json:"due_date"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	FeeAmount       decimal.Decimal `json:"fee_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	TransferID      *string         `json:"transfer_id,omitempty"`
	PaidOn          *string         `json:"paid_on,omitempty"`
}

// InstallmentFromDomain converts a domain installment.
func InstallmentFromDomain(i *domain.LoanInstallment) *InstallmentResponse {
	return &InstallmentResponse{
		ID:              i.ID,
		LoanID:          i.LoanID,
		InstallmentNo:   i.InstallmentNo,
		DueDate:         domain.FormatDate(i.DueDate),
		PrincipalAmount: i.PrincipalAmount,
		InterestAmount:  i.InterestAmount,
		FeeAmount:       i.FeeAmount,
		TotalAmount:     i.TotalAmount,
		Status:          string(i.Status),
		TransferID:      i.TransferID,
		PaidOn:          formatDatePtr(i.PaidOn),
	}
}

// InstallmentsFromDomain converts domain installments.
func InstallmentsFromDomain(installments []*domain.LoanInstallment) []*InstallmentResponse {
	result := make([]*InstallmentResponse, len(installments))
	for i, inst := range installments {
		result[i] = InstallmentFromDomain(inst)
	}
	return result
}

// LoanResponse represents a loan and, when loaded, its plan.
type LoanResponse struct {
	ID                 string                 `json:"id"`
	AccountID          string                 `json:"account_id"`
	Principal          decimal.Decimal        `json:"principal"`
	AnnualRate         decimal.Decimal        `json:"annual_rate"`
	TenorMonths        int                    `json:"tenor_months"`
	Frequency          string                 `json:"frequency"`
	Method             string                 `json:"method"`
	StartDate          string                 `json:"start_date"`
	BalloonAmount      decimal.Decimal        `json:"balloon_amount"`
	Currency           string                 `json:"currency"`
	InterestCategory   string                 `json:"interest_category"`
	ExtraPrincipalPaid decimal.Decimal        `json:"extra_principal_paid"`
	Version            int64                  `json:"version"`
	Installments       []*InstallmentResponse `json:"installments,omitempty"`
}

// LoanFromDomain converts a loan and its installments.
func LoanFromDomain(l *domain.Loan, installments []*domain.LoanInstallment) *LoanResponse {
	resp := &LoanResponse{
		ID:                 l.ID,
		AccountID:          l.AccountID,
		Principal:          l.Principal,
		AnnualRate:         l.AnnualRate,
		TenorMonths:        l.TenorMonths,
		Frequency:          string(l.Frequency),
		Method:             string(l.Method),
		StartDate:          domain.FormatDate(l.StartDate),
		BalloonAmount:      l.BalloonAmount,
		Currency:           l.Currency,
		InterestCategory:   l.InterestCategory,
		ExtraPrincipalPaid: l.ExtraPrincipalPaid,
		Version:            l.Version,
	}
	if installments != nil {
		resp.Installments = InstallmentsFromDomain(installments)
	}
	return resp
}

// PostInstallmentResponse reports a posting.
type PostInstallmentResponse struct {
	Installment   *InstallmentResponse `json:"installment"`
	TransferID    string               `json:"transfer_id"`
	AlreadyPosted bool                 `json:"already_posted"`
}

// TransferResponse represents a transfer and its two legs.
type TransferResponse struct {
	ID            string           `json:"id"`
	FromAccountID string           `json:"from_account_id"`
	ToAccountID   string           `json:"to_account_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	Kind          string           `json:"kind"`
	Date          string           `json:"date"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Entries       []*EntryResponse `json:"entries,omitempty"`
}

// TransferFromDomain converts domain transfer to response.
func TransferFromDomain(t *domain.Transfer, entries []*domain.Entry) *TransferResponse {
	resp := &TransferResponse{
		ID:            t.ID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		Currency:      t.Currency,
		Kind:          string(t.Kind),
		Date:          domain.FormatDate(t.Date),
		Metadata:      t.Metadata,
		CreatedAt:     t.CreatedAt,
	}
	if entries != nil {
		resp.Entries = EntriesFromDomain(entries)
	}
	return resp
}

// LoanPaymentResponse reports an extra payment or additional borrowing.
type LoanPaymentResponse struct {
	Loan         *LoanResponse          `json:"loan"`
	Transfer     *TransferResponse      `json:"transfer"`
	Outstanding  decimal.Decimal        `json:"outstanding"`
	Cancelled    int                    `json:"cancelled"`
	Regenerated  int                    `json:"regenerated"`
	Installments []*InstallmentResponse `json:"installments"`
}

// LoanPaymentFromResult converts a loan payment result.
func LoanPaymentFromResult(r *usecase.LoanPaymentResult) *LoanPaymentResponse {
	return &LoanPaymentResponse{
		Loan:         LoanFromDomain(r.Loan, nil),
		Transfer:     TransferFromDomain(r.Transfer, nil),
		Outstanding:  r.Outstanding,
		Cancelled:    r.Cancelled,
		Regenerated:  r.Regenerated,
		Installments: InstallmentsFromDomain(r.Installments),
	}
}

// ReconciliationResponse reports an account check.
type ReconciliationResponse struct {
	AccountID         string          `json:"account_id"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	IsReconciled      bool            `json:"is_reconciled"`
	LastChecked       time.Time       `json:"last_checked"`
}

// ReconciliationFromResult converts an account check.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:         r.AccountID,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		IsReconciled:      r.IsReconciled,
		LastChecked:       r.LastChecked,
	}
}

// ReconciliationReportResponse summarizes all accounts.
type ReconciliationReportResponse struct {
	TotalAccounts      int                       `json:"total_accounts"`
	ReconciledAccounts int                       `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// LoanReconciliationResponse reports principal conservation for a loan.
type LoanReconciliationResponse struct {
	LoanID             string          `json:"loan_id"`
	Principal          decimal.Decimal `json:"principal"`
	PlannedPrincipal   decimal.Decimal `json:"planned_principal"`
	ExtraPrincipalPaid decimal.Decimal `json:"extra_principal_paid"`
	Difference         decimal.Decimal `json:"difference"`
	IsReconciled       bool            `json:"is_reconciled"`
}

// ExchangeRateResponse is a resolved rate.
type ExchangeRateResponse struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Date string          `json:"date"`
	Rate decimal.Decimal `json:"rate"`
}

// NoticesResponse lists recent sync notices.
type NoticesResponse struct {
	Notices []domain.SyncNotice `json:"notices"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
