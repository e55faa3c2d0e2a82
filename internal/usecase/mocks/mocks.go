package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc           func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
	GetByIDFunc          func(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error)
	UpdateBalancesFunc   func(ctx context.Context, tx usecase.Transaction, id string, balance, cash decimal.Decimal, updatedAt time.Time) error
	ListFunc             func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository(accounts ...*domain.Account) *MockAccountRepository {
	m := &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockAccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, id string, balance, cash decimal.Decimal, updatedAt time.Time) error {
	if m.UpdateBalancesFunc != nil {
		return m.UpdateBalancesFunc(ctx, tx, id, balance, cash, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	acc.Balance = balance
	acc.CashBalance = cash
	acc.UpdatedAt = updatedAt
	acc.Version++
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	if offset >= len(accounts) {
		return nil, nil
	}
	end := offset + limit
	if end > len(accounts) {
		end = len(accounts)
	}
	return accounts[offset:end], nil
}

// MockEntryRepository is a mock implementation of EntryRepository.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries []*domain.Entry

	CreateFunc               func(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error
	ListByAccountInRangeFunc func(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Entry, error)
	LatestDateFunc           func(ctx context.Context, accountID string) (*time.Time, error)
	GetByTransferFunc        func(ctx context.Context, transferID string) ([]*domain.Entry, error)
}

func NewMockEntryRepository(entries ...*domain.Entry) *MockEntryRepository {
	return &MockEntryRepository{entries: entries}
}

// Entries returns every stored entry.
func (m *MockEntryRepository) Entries() []*domain.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Entry(nil), m.entries...)
}

func (m *MockEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockEntryRepository) ListByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Entry, error) {
	if m.ListByAccountInRangeFunc != nil {
		return m.ListByAccountInRangeFunc(ctx, accountID, from, to)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Entry
	for _, e := range m.entries {
		if e.AccountID == accountID && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MockEntryRepository) LatestDate(ctx context.Context, accountID string) (*time.Time, error) {
	if m.LatestDateFunc != nil {
		return m.LatestDateFunc(ctx, accountID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *time.Time
	for _, e := range m.entries {
		if e.AccountID == accountID && (latest == nil || e.Date.After(*latest)) {
			d := e.Date
			latest = &d
		}
	}
	return latest, nil
}

func (m *MockEntryRepository) GetByTransfer(ctx context.Context, transferID string) ([]*domain.Entry, error) {
	if m.GetByTransferFunc != nil {
		return m.GetByTransferFunc(ctx, transferID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Entry
	for _, e := range m.entries {
		if e.TransferID != nil && *e.TransferID == transferID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MockHoldingRepository is a mock implementation of HoldingRepository.
type MockHoldingRepository struct {
	mu       sync.RWMutex
	holdings []*domain.Holding

	ListByAccountInRangeFunc func(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Holding, error)
}

func NewMockHoldingRepository(holdings ...*domain.Holding) *MockHoldingRepository {
	return &MockHoldingRepository{holdings: holdings}
}

func (m *MockHoldingRepository) ListByAccountInRange(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Holding, error) {
	if m.ListByAccountInRangeFunc != nil {
		return m.ListByAccountInRangeFunc(ctx, accountID, from, to)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Holding
	for _, h := range m.holdings {
		if h.AccountID == accountID && !h.Date.Before(from) && !h.Date.After(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MockHoldingRepository) LatestDate(ctx context.Context, accountID string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *time.Time
	for _, h := range m.holdings {
		if h.AccountID == accountID && (latest == nil || h.Date.After(*latest)) {
			d := h.Date
			latest = &d
		}
	}
	return latest, nil
}

// MockBalanceRepository is an in-memory BalanceRepository keyed like the
// real table by (account, date, currency).
type MockBalanceRepository struct {
	mu   sync.RWMutex
	rows map[string]*domain.Balance

	// BatchSizes records the batch size of every UpsertBatch call.
	BatchSizes []int

	UpsertBatchFunc func(ctx context.Context, tx usecase.Transaction, balances []*domain.Balance, batchSize int) (int, error)
}

func NewMockBalanceRepository(rows ...*domain.Balance) *MockBalanceRepository {
	m := &MockBalanceRepository{rows: make(map[string]*domain.Balance)}
	for _, b := range rows {
		m.rows[balanceKey(b.AccountID, b.Currency, b.Date)] = b
	}
	return m
}

func balanceKey(accountID, currency string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", accountID, currency, domain.FormatDate(date))
}

// Rows returns the stored rows for an account, sorted by date.
func (m *MockBalanceRepository) Rows(accountID, currency string) []*domain.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(accountID, currency)
}

func (m *MockBalanceRepository) sorted(accountID, currency string) []*domain.Balance {
	var out []*domain.Balance
	for _, b := range m.rows {
		if b.AccountID == accountID && b.Currency == currency {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *MockBalanceRepository) GetLatestBefore(ctx context.Context, tx usecase.Transaction, accountID, currency string, date time.Time) (*domain.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *domain.Balance
	for _, b := range m.sorted(accountID, currency) {
		if b.Date.Before(date) {
			found = b
		}
	}
	if found == nil {
		return nil, domain.ErrBalanceNotFound
	}
	return found, nil
}

func (m *MockBalanceRepository) GetOnOrBefore(ctx context.Context, tx usecase.Transaction, accountID, currency string, date time.Time) (*domain.Balance, error) {
	return m.GetLatestBefore(ctx, tx, accountID, currency, domain.NextDay(date))
}

func (m *MockBalanceRepository) GetLatest(ctx context.Context, tx usecase.Transaction, accountID, currency string) (*domain.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.sorted(accountID, currency)
	if len(rows) == 0 {
		return nil, domain.ErrBalanceNotFound
	}
	return rows[len(rows)-1], nil
}

func (m *MockBalanceRepository) UpsertBatch(ctx context.Context, tx usecase.Transaction, balances []*domain.Balance, batchSize int) (int, error) {
	if m.UpsertBatchFunc != nil {
		return m.UpsertBatchFunc(ctx, tx, balances, batchSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchSizes = append(m.BatchSizes, batchSize)
	now := time.Now().UTC()
	for _, b := range balances {
		row := *b
		key := balanceKey(b.AccountID, b.Currency, b.Date)
		if existing, ok := m.rows[key]; ok {
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
		} else {
			row.ID = key
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		m.rows[key] = &row
	}
	return len(balances), nil
}

func (m *MockBalanceRepository) DeleteOutsideRange(ctx context.Context, tx usecase.Transaction, accountID, currency string, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, b := range m.rows {
		if b.AccountID == accountID && b.Currency == currency && (b.Date.Before(from) || b.Date.After(to)) {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func (m *MockBalanceRepository) DeleteInRangeExcept(ctx context.Context, tx usecase.Transaction, accountID, currency string, from, to time.Time, keep []time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make(map[string]bool, len(keep))
	for _, d := range keep {
		kept[domain.FormatDate(d)] = true
	}
	var n int64
	for key, b := range m.rows {
		if b.AccountID != accountID || b.Currency != currency || b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		if !kept[domain.FormatDate(b.Date)] {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func (m *MockBalanceRepository) ListByAccount(ctx context.Context, accountID, currency string, from, to time.Time) ([]*domain.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Balance
	for _, b := range m.sorted(accountID, currency) {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// MockLoanRepository is a mock implementation of LoanRepository.
type MockLoanRepository struct {
	mu    sync.RWMutex
	loans map[string]*domain.Loan

	CreateFunc func(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error
}

func NewMockLoanRepository(loans ...*domain.Loan) *MockLoanRepository {
	m := &MockLoanRepository{loans: make(map[string]*domain.Loan)}
	for _, l := range loans {
		m.loans[l.ID] = l
	}
	return m
}

func (m *MockLoanRepository) Create(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, loan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = loan
	return nil
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.loans[id]; ok {
		return l, nil
	}
	return nil, domain.ErrLoanNotFound
}

func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Loan, error) {
	return m.GetByID(ctx, id)
}

func (m *MockLoanRepository) Update(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loan.ID]; !ok {
		return domain.ErrLoanNotFound
	}
	loan.Version++
	m.loans[loan.ID] = loan
	return nil
}

// MockInstallmentRepository is a mock implementation of InstallmentRepository.
type MockInstallmentRepository struct {
	mu           sync.RWMutex
	installments map[string]*domain.LoanInstallment

	UpdateFunc func(ctx context.Context, tx usecase.Transaction, installment *domain.LoanInstallment) error
}

func NewMockInstallmentRepository(installments ...*domain.LoanInstallment) *MockInstallmentRepository {
	m := &MockInstallmentRepository{installments: make(map[string]*domain.LoanInstallment)}
	for _, i := range installments {
		m.installments[i.ID] = i
	}
	return m
}

func (m *MockInstallmentRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, installments []*domain.LoanInstallment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range installments {
		for _, existing := range m.installments {
			if existing.LoanID == i.LoanID && existing.InstallmentNo == i.InstallmentNo {
				return fmt.Errorf("duplicate installment %d for loan %s", i.InstallmentNo, i.LoanID)
			}
		}
		m.installments[i.ID] = i
	}
	return nil
}

func (m *MockInstallmentRepository) GetByID(ctx context.Context, id string) (*domain.LoanInstallment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.installments[id]; ok {
		return i, nil
	}
	return nil, domain.ErrInstallmentNotFound
}

func (m *MockInstallmentRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LoanInstallment, error) {
	return m.GetByID(ctx, id)
}

func (m *MockInstallmentRepository) ListByLoan(ctx context.Context, loanID string) ([]*domain.LoanInstallment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.LoanInstallment
	for _, i := range m.installments {
		if i.LoanID == loanID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].InstallmentNo < out[b].InstallmentNo })
	return out, nil
}

func (m *MockInstallmentRepository) ListByLoanForUpdate(ctx context.Context, tx usecase.Transaction, loanID string) ([]*domain.LoanInstallment, error) {
	return m.ListByLoan(ctx, loanID)
}

func (m *MockInstallmentRepository) Update(ctx context.Context, tx usecase.Transaction, installment *domain.LoanInstallment) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, installment)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.installments[installment.ID]; !ok {
		return domain.ErrInstallmentNotFound
	}
	installment.Version++
	m.installments[installment.ID] = installment
	return nil
}

// MockTransferRepository is a mock implementation of TransferRepository.
type MockTransferRepository struct {
	mu        sync.RWMutex
	transfers map[string]*domain.Transfer

	CreateFunc func(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error
}

func NewMockTransferRepository() *MockTransferRepository {
	return &MockTransferRepository{
		transfers: make(map[string]*domain.Transfer),
	}
}

// Count returns the number of stored transfers.
func (m *MockTransferRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transfers)
}

func (m *MockTransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, transfer)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[transfer.ID] = transfer
	return nil
}

func (m *MockTransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.transfers[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTransferNotFound
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// EventTypes returns the types of stored events in insertion order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType
	}
	return out
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if !e.Published || e.PublishedAt == nil || !e.PublishedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	mu      sync.Mutex
	Commits int

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{
		CommitFunc: func(ctx context.Context) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.Commits++
			return nil
		},
	}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%d", m.counter)
}

// MockRetrier runs the operation once.
type MockRetrier struct {
	Calls     int
	RetryFunc func(ctx context.Context, operation func() error) error
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	m.Calls++
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	return operation()
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	m.data[key] = response
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}
