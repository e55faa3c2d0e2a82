package domain

import "time"

// Event types
const (
	EventTypeScheduleGenerated = "schedule.generated"
	EventTypeBalanceSynced     = "balance.sync_completed"
	EventTypeBalanceDeltaSpike = "balance.delta_spike"
	EventTypeBalanceDowngraded = "balance.sync_downgraded"
	EventTypeInstallmentPosted = "installment.posted"
	EventTypeLoanExtraPayment  = "loan.extra_payment"
	EventTypeLoanBorrowing     = "loan.borrowing"
	EventTypeAccountCreated    = "account.created"
)

// Aggregate types
const (
	AggregateTypeAccount     = "account"
	AggregateTypeLoan        = "loan"
	AggregateTypeInstallment = "installment"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// ScheduleGeneratedEvent payload
type ScheduleGeneratedEvent struct {
	LoanID      string `json:"loan_id"`
	AccountID   string `json:"account_id"`
	Principal   string `json:"principal"`
	AnnualRate  string `json:"annual_rate"`
	TenorMonths int    `json:"tenor_months"`
	Frequency   string `json:"frequency"`
	Method      string `json:"method"`
	Balloon     string `json:"balloon"`
	Rows        int    `json:"rows"`
}

// BalanceSyncedEvent payload
type BalanceSyncedEvent struct {
	AccountID  string `json:"account_id"`
	Currency   string `json:"currency"`
	Plan       string `json:"plan"`
	Reason     string `json:"reason"`
	Passes     int    `json:"passes"`
	Rows       int    `json:"rows"`
	Purged     int64  `json:"purged"`
	FirstDate  string `json:"first_date,omitempty"`
	LastDate   string `json:"last_date,omitempty"`
	Balance    string `json:"balance"`
	DurationMS int64  `json:"duration_ms"`
}

// BalanceDeltaSpikeEvent payload
type BalanceDeltaSpikeEvent struct {
	AccountID     string `json:"account_id"`
	Date          string `json:"date"`
	Previous      string `json:"previous"`
	Computed      string `json:"computed"`
	FlowMagnitude string `json:"flow_magnitude"`
	Pass          int    `json:"pass"`
}

// InstallmentPostedEvent payload
type InstallmentPostedEvent struct {
	InstallmentID string `json:"installment_id"`
	LoanID        string `json:"loan_id"`
	TransferID    string `json:"transfer_id"`
	Principal     string `json:"principal"`
	Interest      string `json:"interest"`
	Status        string `json:"status"`
	PaidOn        string `json:"paid_on"`
}

// LoanPaymentEvent payload, shared by extra payments and additional borrowing.
type LoanPaymentEvent struct {
	LoanID         string `json:"loan_id"`
	TransferID     string `json:"transfer_id"`
	Amount         string `json:"amount"`
	Allocation     string `json:"allocation,omitempty"`
	Outstanding    string `json:"outstanding"`
	Cancelled      int    `json:"cancelled"`
	Regenerated    int    `json:"regenerated"`
	EffectiveOnDay string `json:"effective_on"`
}

// AccountCreatedEvent payload
type AccountCreatedEvent struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Currency  string `json:"currency"`
}
