package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
)

// MaterializerConfig tunes the recalculation safety net.
type MaterializerConfig struct {
	// SpikeMultiplier bounds how far the latest balance may move relative to
	// the flow magnitude of the recomputed rows.
	SpikeMultiplier  decimal.Decimal
	MaxPasses        int
	ConversionPolicy ConversionPolicy
}

// DefaultMaterializerConfig returns the stock tuning.
func DefaultMaterializerConfig() MaterializerConfig {
	return MaterializerConfig{
		SpikeMultiplier:  decimal.NewFromInt(DefaultSpikeMultiplier),
		MaxPasses:        DefaultMaxPasses,
		ConversionPolicy: ConversionBestEffort,
	}
}

// MaterializerDeps wires the materializer's collaborators. Rates, Notifier,
// HoldingsMaterializer, Holdings, Outbox and Metrics are optional.
type MaterializerDeps struct {
	TxManager            TransactionManager
	Accounts             AccountRepository
	Balances             BalanceRepository
	Entries              EntryRepository
	Holdings             HoldingRepository
	Outbox               OutboxRepository
	Rates                ExchangeRateProvider
	Locker               AccountLocker
	Notifier             SyncNotifier
	HoldingsMaterializer HoldingsMaterializer
	IDGen                IDGenerator
	Metrics              *metrics.Metrics
	Logger               zerolog.Logger
	Clock                Clock
}

// BalanceMaterializer turns an account's ledger into persisted daily balances.
type BalanceMaterializer struct {
	deps MaterializerDeps
	cfg  MaterializerConfig
}

// NewBalanceMaterializer creates a materializer. Zero config values fall back
// to the defaults.
func NewBalanceMaterializer(deps MaterializerDeps, cfg MaterializerConfig) *BalanceMaterializer {
	def := DefaultMaterializerConfig()
	if cfg.MaxPasses < 1 {
		cfg.MaxPasses = def.MaxPasses
	}
	if !cfg.SpikeMultiplier.IsPositive() {
		cfg.SpikeMultiplier = def.SpikeMultiplier
	}
	if cfg.ConversionPolicy == "" {
		cfg.ConversionPolicy = def.ConversionPolicy
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &BalanceMaterializer{deps: deps, cfg: cfg}
}

// MaterializeInput selects the account, direction and optional window.
type MaterializeInput struct {
	AccountID   string
	Strategy    domain.SyncStrategy
	WindowStart *time.Time
	WindowEnd   *time.Time
}

// MaterializeResult summarizes a completed materialization.
type MaterializeResult struct {
	AccountID    string
	Plan         RecalculationPlan
	Passes       int
	RowsUpserted int
	RowsPurged   int64
	Downgraded   bool
	FXFallbacks  int
	FirstDate    *time.Time
	LastDate     *time.Time
	Balance      decimal.Decimal
	CashBalance  decimal.Decimal
	Duration     time.Duration
}

// Materialize recomputes and persists the account's balances.
//
// The account is locked with a non-blocking try-lock; when another sync holds
// it, domain.ErrBalanceSyncInProgress is returned and nothing is written. All
// passes share one transaction, so a failure leaves the stored rows untouched.
func (m *BalanceMaterializer) Materialize(ctx context.Context, in MaterializeInput) (*MaterializeResult, error) {
	started := time.Now()

	if err := domain.ValidateWindow(in.WindowStart, in.WindowEnd); err != nil {
		return nil, err
	}

	strategy, err := domain.ParseSyncStrategy(string(in.Strategy))
	if err != nil {
		return nil, err
	}

	logger := m.deps.Logger.With().Str("account_id", in.AccountID).Str("strategy", string(strategy)).Logger()

	key := BalanceSyncLockPrefix + in.AccountID
	token, acquired, err := m.deps.Locker.TryAcquire(ctx, key)
	if err != nil {
		m.recordOutcome("error")
		return nil, fmt.Errorf("failed to acquire balance sync lock: %w", err)
	}
	if !acquired {
		logger.Warn().Msg("balance sync already running, skipping")
		if m.deps.Metrics != nil {
			m.deps.Metrics.BalanceLockContention.Inc()
		}
		m.recordOutcome("contention")
		return nil, domain.ErrBalanceSyncInProgress
	}
	defer func() {
		if err := m.deps.Locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			logger.Error().Err(err).Msg("failed to release balance sync lock")
		}
	}()

	result, err := m.run(ctx, logger, in, strategy)
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("balance sync failed")
		m.recordOutcome("error")
		return nil, err
	}
	result.Duration = time.Since(started)

	if result.Downgraded {
		m.notifyDowngrade(ctx, logger, in, result.Plan)
	}

	logger.Info().
		Str("plan", result.Plan.String()).
		Int("passes", result.Passes).
		Int("rows", result.RowsUpserted).
		Int64("purged", result.RowsPurged).
		Int("fx_fallbacks", result.FXFallbacks).
		Dur("duration", result.Duration).
		Msg("balance sync completed")

	if m.deps.Metrics != nil {
		m.deps.Metrics.BalanceSyncDuration.Observe(result.Duration.Seconds())
		m.deps.Metrics.BalanceSyncPasses.Observe(float64(result.Passes))
		m.deps.Metrics.BalanceRowsUpserted.Add(float64(result.RowsUpserted))
		m.deps.Metrics.BalanceRowsPurged.Add(float64(result.RowsPurged))
		if result.Plan.IsFull() && result.Plan.Reason != PlanReasonRequested {
			m.deps.Metrics.BalanceDowngrades.WithLabelValues(string(result.Plan.Reason)).Inc()
		}
	}
	m.recordOutcome("ok")

	return result, nil
}

func (m *BalanceMaterializer) run(
	ctx context.Context,
	logger zerolog.Logger,
	in MaterializeInput,
	strategy domain.SyncStrategy,
) (*MaterializeResult, error) {
	tx, err := m.deps.TxManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	account, err := m.deps.Accounts.GetByIDForUpdate(ctx, tx, in.AccountID)
	if err != nil {
		return nil, err
	}

	if m.deps.HoldingsMaterializer != nil && account.BalanceType() == domain.BalanceTypeInvestment {
		if err := m.deps.HoldingsMaterializer.MaterializeHoldings(ctx, tx, account); err != nil {
			return nil, fmt.Errorf("failed to materialize holdings: %w", err)
		}
	}

	plan, err := m.initialPlan(ctx, tx, account, strategy, in)
	if err != nil {
		return nil, err
	}

	result := &MaterializeResult{AccountID: account.ID}

	var rows []*domain.Balance
	for pass := 1; pass <= m.cfg.MaxPasses; pass++ {
		result.Passes = pass
		last := pass == m.cfg.MaxPasses

		calc := m.calculator(tx, account, strategy)
		rows, err = calc.Calculate(ctx, plan.Request())
		result.FXFallbacks += calc.FXFallbacks()
		if err != nil {
			return nil, fmt.Errorf("balance calculation failed (%s): %w", plan, err)
		}

		logger.Debug().Int("pass", pass).Str("plan", plan.String()).Int("rows", len(rows)).Msg("balance pass computed")

		if last {
			break
		}

		if len(rows) == 0 {
			plan = FullPlan(PlanReasonEmptyResult)
			continue
		}

		if !plan.IsFull() {
			spike, err := m.detectSpike(ctx, tx, logger, account, rows, pass)
			if err != nil {
				return nil, err
			}
			if spike {
				plan = FullPlan(PlanReasonDeltaSpike)
				continue
			}
		}

		break
	}

	result.Plan = plan
	result.Downgraded = in.WindowStart != nil && plan.IsFull()

	if err := m.persist(ctx, tx, account, plan, rows, result); err != nil {
		return nil, err
	}

	now := m.deps.Clock()

	if result.Downgraded {
		notice := m.notice(in, plan, now)
		if err := writeEvent(ctx, tx, m.deps.Outbox, m.deps.IDGen,
			domain.AggregateTypeAccount, account.ID, domain.EventTypeBalanceDowngraded, notice, now); err != nil {
			return nil, err
		}
	}

	synced := domain.BalanceSyncedEvent{
		AccountID: account.ID,
		Currency:  account.Currency,
		Plan:      string(plan.Mode),
		Reason:    string(plan.Reason),
		Passes:    result.Passes,
		Rows:      result.RowsUpserted,
		Purged:    result.RowsPurged,
		Balance:   result.Balance.String(),
	}
	if result.FirstDate != nil {
		synced.FirstDate = domain.FormatDate(*result.FirstDate)
		synced.LastDate = domain.FormatDate(*result.LastDate)
	}
	if err := writeEvent(ctx, tx, m.deps.Outbox, m.deps.IDGen,
		domain.AggregateTypeAccount, account.ID, domain.EventTypeBalanceSynced, synced, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

// initialPlan decides the first pass. A window without a row before its start
// has nothing to continue from, so it becomes a full rebuild.
func (m *BalanceMaterializer) initialPlan(
	ctx context.Context,
	tx Transaction,
	account *domain.Account,
	strategy domain.SyncStrategy,
	in MaterializeInput,
) (RecalculationPlan, error) {
	if strategy == domain.SyncStrategyReverse {
		return FullPlan(PlanReasonReverseStrategy), nil
	}
	if in.WindowStart == nil {
		return FullPlan(PlanReasonRequested), nil
	}

	_, err := m.deps.Balances.GetLatestBefore(ctx, tx, account.ID, account.Currency, domain.DateOf(*in.WindowStart))
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return FullPlan(PlanReasonNoAnchor), nil
	}
	if err != nil {
		return RecalculationPlan{}, fmt.Errorf("failed to look up anchor balance: %w", err)
	}

	return WindowedPlan(*in.WindowStart, in.WindowEnd), nil
}

func (m *BalanceMaterializer) calculator(tx Transaction, account *domain.Account, strategy domain.SyncStrategy) BalanceCalculator {
	deps := CalculatorDeps{
		Balances: m.deps.Balances,
		Cache: SyncCacheSource{
			Entries:  m.deps.Entries,
			Holdings: m.deps.Holdings,
			Rates:    m.deps.Rates,
			Policy:   m.cfg.ConversionPolicy,
			Logger:   m.deps.Logger,
			Metrics:  m.deps.Metrics,
		},
		Clock: m.deps.Clock,
	}

	if strategy == domain.SyncStrategyReverse {
		return NewReverseCalculator(deps, account)
	}
	return NewForwardCalculator(deps, tx, account)
}

// detectSpike compares the newly computed latest balance with what is stored
// for that date (or the latest stored row before it).
func (m *BalanceMaterializer) detectSpike(
	ctx context.Context,
	tx Transaction,
	logger zerolog.Logger,
	account *domain.Account,
	rows []*domain.Balance,
	pass int,
) (bool, error) {
	latest := rows[len(rows)-1]

	previous, err := m.deps.Balances.GetOnOrBefore(ctx, tx, account.ID, account.Currency, latest.Date)
	if errors.Is(err, domain.ErrBalanceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load previous balance: %w", err)
	}

	magnitude := decimal.Zero
	for _, row := range rows {
		magnitude = magnitude.Add(row.FlowMagnitude())
	}

	delta := latest.Balance.Sub(previous.Balance).Abs()
	if !delta.GreaterThan(magnitude.Mul(m.cfg.SpikeMultiplier)) {
		return false, nil
	}

	logger.Warn().
		Str("date", domain.FormatDate(latest.Date)).
		Str("previous", previous.Balance.String()).
		Str("computed", latest.Balance.String()).
		Str("flow_magnitude", magnitude.String()).
		Int("pass", pass).
		Msg("balance delta spike, rebuilding in full")

	if m.deps.Metrics != nil {
		m.deps.Metrics.BalanceDeltaSpikes.Inc()
	}

	event := domain.BalanceDeltaSpikeEvent{
		AccountID:     account.ID,
		Date:          domain.FormatDate(latest.Date),
		Previous:      previous.Balance.String(),
		Computed:      latest.Balance.String(),
		FlowMagnitude: magnitude.String(),
		Pass:          pass,
	}
	if err := writeEvent(ctx, tx, m.deps.Outbox, m.deps.IDGen,
		domain.AggregateTypeAccount, account.ID, domain.EventTypeBalanceDeltaSpike, event, m.deps.Clock()); err != nil {
		return false, err
	}

	return true, nil
}

// persist upserts rows, purges stale ones and refreshes the account aggregate.
func (m *BalanceMaterializer) persist(
	ctx context.Context,
	tx Transaction,
	account *domain.Account,
	plan RecalculationPlan,
	rows []*domain.Balance,
	result *MaterializeResult,
) error {
	if len(rows) > 0 {
		upserted, err := m.deps.Balances.UpsertBatch(ctx, tx, rows, BatchSizeFor(len(rows)))
		if err != nil {
			return fmt.Errorf("failed to upsert balances: %w", err)
		}
		result.RowsUpserted = upserted

		first, last := rows[0].Date, rows[len(rows)-1].Date
		result.FirstDate, result.LastDate = &first, &last

		var purged int64
		if plan.IsFull() {
			purged, err = m.deps.Balances.DeleteOutsideRange(ctx, tx, account.ID, account.Currency, first, last)
		} else {
			to := last
			if plan.WindowEnd != nil {
				to = *plan.WindowEnd
			}
			keep := make([]time.Time, len(rows))
			for i, row := range rows {
				keep[i] = row.Date
			}
			purged, err = m.deps.Balances.DeleteInRangeExcept(ctx, tx, account.ID, account.Currency, first, to, keep)
		}
		if err != nil {
			return fmt.Errorf("failed to purge stale balances: %w", err)
		}
		result.RowsPurged = purged
	}

	latest, err := m.deps.Balances.GetLatest(ctx, tx, account.ID, account.Currency)
	if errors.Is(err, domain.ErrBalanceNotFound) {
		result.Balance, result.CashBalance = account.Balance, account.CashBalance
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load latest balance: %w", err)
	}

	if err := m.deps.Accounts.UpdateBalances(ctx, tx, account.ID, latest.Balance, latest.CashBalance, m.deps.Clock()); err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	result.Balance, result.CashBalance = latest.Balance, latest.CashBalance

	return nil
}

func (m *BalanceMaterializer) notice(in MaterializeInput, plan RecalculationPlan, now time.Time) domain.SyncNotice {
	return domain.SyncNotice{
		AccountID:   in.AccountID,
		WindowStart: in.WindowStart,
		WindowEnd:   in.WindowEnd,
		Reason:      string(plan.Reason),
		Message:     fmt.Sprintf("Balance sync fell back to a full rebuild (%s).", plan.Reason),
		CreatedAt:   now,
	}
}

// notifyDowngrade tells the user their windowed sync became a full rebuild.
// It runs after commit and never fails the sync.
func (m *BalanceMaterializer) notifyDowngrade(ctx context.Context, logger zerolog.Logger, in MaterializeInput, plan RecalculationPlan) {
	if m.deps.Notifier == nil {
		return
	}

	if err := m.deps.Notifier.NotifySyncDowngraded(ctx, m.notice(in, plan, m.deps.Clock())); err != nil {
		logger.Warn().Err(err).Msg("failed to send sync downgrade notice")
	}
}

func (m *BalanceMaterializer) recordOutcome(result string) {
	if m.deps.Metrics != nil {
		m.deps.Metrics.BalanceSyncs.WithLabelValues(result).Inc()
	}
}
