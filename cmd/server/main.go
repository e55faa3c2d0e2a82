package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/ledgerbook/internal/adapter/http"
	"github.com/iho/ledgerbook/internal/adapter/http/handler"
	"github.com/iho/ledgerbook/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/ledgerbook/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgerbook/internal/adapter/repository/redis"
	"github.com/iho/ledgerbook/internal/infrastructure/config"
	"github.com/iho/ledgerbook/internal/infrastructure/errorreport"
	"github.com/iho/ledgerbook/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgerbook/internal/infrastructure/fxrates"
	"github.com/iho/ledgerbook/internal/infrastructure/locker"
	"github.com/iho/ledgerbook/internal/infrastructure/logger"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
	"github.com/iho/ledgerbook/internal/infrastructure/postgres"
	"github.com/iho/ledgerbook/internal/infrastructure/redis"
	"github.com/iho/ledgerbook/internal/infrastructure/syncworker"
	"github.com/iho/ledgerbook/internal/usecase"
)

// version is set at build time with -ldflags.
var version = "dev"

const limiterIdleTimeout = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logg := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	reporter, flush, err := errorreport.Init(errorreport.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		SampleRate:  cfg.SentrySampleRate,
		Release:     version,
	})
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to initialize sentry")
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg, reporter); err != nil {
		reporter.Report(context.Background(), err, map[string]string{"component": "server"})
		logg.Error().Err(err).Msg("server exited with error")
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg zerolog.Logger, reporter errorreport.Reporter) error {
	if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, logg).Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	logg.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	logg.Info().Msg("connected to redis")

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	multiplier, err := cfg.SpikeMultiplier()
	if err != nil {
		return err
	}
	policy, err := usecase.ParseConversionPolicy(cfg.FXConversionPolicy)
	if err != nil {
		return err
	}

	// Repositories
	idGen := postgresRepo.NewULIDGenerator()
	txManager := postgresRepo.NewTxManager(pool)
	retrier := postgresRepo.NewRetrier(logg)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	balanceRepo := postgresRepo.NewBalanceRepository(pool, idGen)
	holdingRepo := postgresRepo.NewHoldingRepository(pool)
	loanRepo := postgresRepo.NewLoanRepository(pool)
	installmentRepo := postgresRepo.NewInstallmentRepository(pool)
	transferRepo := postgresRepo.NewTransferRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	rateRepo := postgresRepo.NewExchangeRateRepository(pool)

	// Redis-backed collaborators
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	notifier := redisRepo.NewSyncNotifier(redisClient)
	rates := fxrates.NewCachedProvider(rateRepo, redisRepo.NewCache(redisClient), cfg.FXRateCacheTTL, logg)

	accountLocker, err := newLocker(cfg, redisClient)
	if err != nil {
		return err
	}

	materializer := usecase.NewBalanceMaterializer(usecase.MaterializerDeps{
		TxManager:            txManager,
		Accounts:             accountRepo,
		Balances:             balanceRepo,
		Entries:              entryRepo,
		Holdings:             holdingRepo,
		Outbox:               outboxRepo,
		Rates:                rates,
		Locker:               accountLocker,
		Notifier:             notifier,
		HoldingsMaterializer: holdingRepo,
		IDGen:                idGen,
		Metrics:              m,
		Logger:               logg,
	}, usecase.MaterializerConfig{
		SpikeMultiplier:  multiplier,
		MaxPasses:        cfg.SyncMaxPasses,
		ConversionPolicy: policy,
	})

	syncPool := syncworker.NewPool(syncworker.Config{
		Materializer:    materializer,
		Reporter:        reporter,
		Metrics:         m,
		Logger:          logg,
		Workers:         cfg.SyncWorkers,
		QueueSize:       cfg.SyncQueueSize,
		RetryDelay:      cfg.SyncRetryDelay,
		SyncAllParallel: cfg.SyncAllConcurrency,
	})

	// Use cases
	loanDeps := usecase.LoanDeps{
		TxManager:    txManager,
		Retrier:      retrier,
		Accounts:     accountRepo,
		Loans:        loanRepo,
		Installments: installmentRepo,
		Transfers:    transferRepo,
		Entries:      entryRepo,
		Outbox:       outboxRepo,
		IDGen:        idGen,
		Scheduler:    syncPool,
		Metrics:      m,
		Logger:       logg,
	}
	accountUC := usecase.NewAccountUseCase(txManager, accountRepo, outboxRepo, idGen, syncPool, m)
	entryUC := usecase.NewEntryUseCase(txManager, accountRepo, entryRepo, balanceRepo, idGen, syncPool, m, logg)
	transferUC := usecase.NewTransferUseCase(transferRepo, entryRepo)
	scheduleUC := usecase.NewLoanScheduleUseCase(loanDeps)
	paymentUC := usecase.NewLoanPaymentUseCase(loanDeps)
	postingUC := usecase.NewInstallmentPostingUseCase(loanDeps)
	reconcileUC := usecase.NewReconciliationUseCase(accountRepo, balanceRepo, loanRepo, installmentRepo)

	// Background workers
	sink, err := newEventSink(cfg, redisClient, logg)
	if err != nil {
		return err
	}
	publisher := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  sink,
		Metrics:    m,
		Logger:     logg,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxPollInterval,
		Retention:  cfg.OutboxRetention,
	})

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	syncPool.Start(workerCtx)
	defer syncPool.Stop()

	go func() {
		if err := publisher.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error().Err(err).Msg("event publisher stopped")
		}
	}()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	go sweepLimiters(workerCtx, rateLimiter, logg)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:        handler.NewAccountHandler(accountUC),
		EntryHandler:          handler.NewEntryHandler(entryUC),
		BalanceHandler:        handler.NewBalanceHandler(materializer, syncPool, accountUC, notifier),
		LoanHandler:           handler.NewLoanHandler(scheduleUC, paymentUC, reconcileUC),
		InstallmentHandler:    handler.NewInstallmentHandler(postingUC),
		TransferHandler:       handler.NewTransferHandler(transferUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconcileUC),
		ExchangeRateHandler:   handler.NewExchangeRateHandler(rateRepo, rates),
		HealthHandler:         handler.NewHealthHandler(handler.PostgresCheck(pool), handler.RedisCheck(redisClient)),
		IdempotencyStore:      idempotencyStore,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           rateLimiter,
		Metrics:               m,
		Reporter:              reporter,
		Logger:                logg,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info().Str("port", cfg.HTTPPort).Str("version", version).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logg.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logg.Info().Msg("server stopped")
	return nil
}

// newLocker picks the account lock backend. The in-process locker only
// serializes syncs within one replica.
func newLocker(cfg *config.Config, client *goredis.Client) (usecase.AccountLocker, error) {
	switch cfg.SyncLockBackend {
	case "redis":
		return redisRepo.NewAccountLocker(client, cfg.SyncLockTTL), nil
	case "memory":
		return locker.NewMemoryLocker(cfg.SyncLockTTL), nil
	}
	return nil, fmt.Errorf("unknown SYNC_LOCK_BACKEND %q", cfg.SyncLockBackend)
}

// newEventSink picks where drained outbox events go.
func newEventSink(cfg *config.Config, client *goredis.Client, logg zerolog.Logger) (eventpublisher.Publisher, error) {
	switch cfg.EventSink {
	case "log":
		return eventpublisher.NewLogPublisher(logg), nil
	case "redis":
		return eventpublisher.NewRedisStreamPublisher(client, cfg.EventStreamMaxLen), nil
	}
	return nil, fmt.Errorf("unknown EVENT_SINK %q", cfg.EventSink)
}

func sweepLimiters(ctx context.Context, rl *middleware.RateLimiter, logg zerolog.Logger) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := rl.CleanupLimiters(limiterIdleTimeout); removed > 0 {
				logg.Debug().Int("removed", removed).Msg("dropped idle rate limiters")
			}
		}
	}
}
