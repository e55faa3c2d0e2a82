// Package syncworker runs balance materializations off the request path.
package syncworker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/errorreport"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
	"github.com/iho/ledgerbook/internal/usecase"
)

var (
	// ErrQueueFull is returned when the pending queue has no room.
	ErrQueueFull = errors.New("sync queue is full")
	// ErrPoolStopped is returned for requests scheduled after Stop.
	ErrPoolStopped = errors.New("sync pool stopped")
)

const maxContentionRetries = 3

// Materializer is the part of usecase.BalanceMaterializer the pool drives.
type Materializer interface {
	Materialize(ctx context.Context, in usecase.MaterializeInput) (*usecase.MaterializeResult, error)
}

// Config for Pool.
type Config struct {
	Materializer    Materializer
	Reporter        errorreport.Reporter
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
	Workers         int
	QueueSize       int
	RetryDelay      time.Duration // wait before retrying a sync that hit a held lock
	SyncAllParallel int
}

type job struct {
	req      usecase.SyncRequest
	attempts int
}

// Pool implements usecase.SyncScheduler with a fixed set of workers. Requests
// for an account that is already queued are merged into the queued one.
type Pool struct {
	cfg Config

	mu      sync.Mutex
	pending map[string]*job
	queue   chan string
	stopped bool

	wg sync.WaitGroup
}

// NewPool creates a pool. Call Start before scheduling.
func NewPool(cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1024
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.SyncAllParallel < 1 {
		cfg.SyncAllParallel = cfg.Workers
	}
	if cfg.Reporter == nil {
		cfg.Reporter = errorreport.NopReporter{}
	}

	return &Pool{
		cfg:     cfg,
		pending: make(map[string]*job),
		queue:   make(chan string, cfg.QueueSize),
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is
// called and the queue has drained.
func (p *Pool) Start(ctx context.Context) {
	p.cfg.Logger.Info().Int("workers", p.cfg.Workers).Int("queue_size", p.cfg.QueueSize).Msg("sync pool started")
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

// Stop refuses new requests and waits for queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cfg.Logger.Info().Msg("sync pool stopped")
}

// ScheduleSync implements usecase.SyncScheduler. It never blocks.
func (p *Pool) ScheduleSync(_ context.Context, req usecase.SyncRequest) error {
	return p.enqueue(&job{req: req})
}

func (p *Pool) enqueue(j *job) error {
	strategy, err := domain.ParseSyncStrategy(string(j.req.Strategy))
	if err != nil {
		return err
	}
	j.req.Strategy = strategy

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}

	if queued, ok := p.pending[j.req.AccountID]; ok {
		queued.req = merge(queued.req, j.req)
		return nil
	}

	select {
	case p.queue <- j.req.AccountID:
		p.pending[j.req.AccountID] = j
		p.setDepth()
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case accountID, ok := <-p.queue:
			if !ok {
				return
			}

			p.mu.Lock()
			j := p.pending[accountID]
			delete(p.pending, accountID)
			p.setDepth()
			p.mu.Unlock()

			if j != nil {
				p.run(ctx, j)
			}
		}
	}
}

func (p *Pool) run(ctx context.Context, j *job) {
	logger := p.cfg.Logger.With().
		Str("account_id", j.req.AccountID).
		Str("reason", j.req.Reason).
		Logger()

	_, err := p.cfg.Materializer.Materialize(ctx, inputFor(j.req))
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrBalanceSyncInProgress):
		if j.attempts >= maxContentionRetries {
			logger.Warn().Int("attempts", j.attempts).Msg("giving up on balance sync, account stays locked")
			return
		}
		j.attempts++
		logger.Debug().Int("attempt", j.attempts).Msg("account locked, retrying balance sync later")
		time.AfterFunc(p.cfg.RetryDelay, func() {
			if err := p.enqueue(j); err != nil && !errors.Is(err, ErrPoolStopped) {
				logger.Warn().Err(err).Msg("failed to requeue balance sync")
			}
		})
	case errors.Is(err, context.Canceled):
		logger.Debug().Msg("balance sync cancelled")
	default:
		logger.Error().Err(err).Msg("balance sync failed")
		p.cfg.Reporter.Report(ctx, err, map[string]string{
			"component":  "syncworker",
			"account_id": j.req.AccountID,
			"strategy":   string(j.req.Strategy),
		})
	}
}

// setDepth must be called with mu held.
func (p *Pool) setDepth() {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.SyncQueueDepth.Set(float64(len(p.pending)))
	}
}

// SyncAllResult summarizes a SyncAll run.
type SyncAllResult struct {
	Synced  int
	Skipped []string
	Failed  map[string]error
}

// SyncAll materializes every account in full, bounded by SyncAllParallel.
// Locked accounts are skipped. Per-account failures are collected rather
// than aborting the run; only cancellation stops it early.
func (p *Pool) SyncAll(ctx context.Context, accountIDs []string, strategy domain.SyncStrategy) (*SyncAllResult, error) {
	result := &SyncAllResult{Failed: make(map[string]error)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.SyncAllParallel)

	for _, id := range accountIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			_, err := p.cfg.Materializer.Materialize(gctx, usecase.MaterializeInput{AccountID: id, Strategy: strategy})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Synced++
			case errors.Is(err, domain.ErrBalanceSyncInProgress):
				result.Skipped = append(result.Skipped, id)
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				result.Failed[id] = err
				p.cfg.Reporter.Report(gctx, err, map[string]string{"component": "syncworker", "account_id": id})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	p.cfg.Logger.Info().
		Int("synced", result.Synced).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Msg("sync all completed")

	return result, nil
}

func inputFor(req usecase.SyncRequest) usecase.MaterializeInput {
	return usecase.MaterializeInput{
		AccountID:   req.AccountID,
		Strategy:    req.Strategy,
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
	}
}

// merge widens a queued request to cover another. An open bound on either
// side stays open, and differing strategies fall back to forward.
func merge(a, b usecase.SyncRequest) usecase.SyncRequest {
	out := a
	if a.Strategy != b.Strategy {
		out.Strategy = domain.SyncStrategyForward
	}

	switch {
	case a.WindowStart == nil || b.WindowStart == nil:
		out.WindowStart = nil
	case b.WindowStart.Before(*a.WindowStart):
		out.WindowStart = b.WindowStart
	}

	switch {
	case a.WindowEnd == nil || b.WindowEnd == nil:
		out.WindowEnd = nil
	case b.WindowEnd.After(*a.WindowEnd):
		out.WindowEnd = b.WindowEnd
	}

	if b.Reason != "" && !strings.Contains(a.Reason, b.Reason) {
		out.Reason = a.Reason + "," + b.Reason
	}
	return out
}
