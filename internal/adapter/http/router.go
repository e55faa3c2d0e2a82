package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerbook/internal/adapter/http/handler"
	"github.com/iho/ledgerbook/internal/adapter/http/middleware"
	"github.com/iho/ledgerbook/internal/infrastructure/errorreport"
	"github.com/iho/ledgerbook/internal/infrastructure/metrics"
	"github.com/iho/ledgerbook/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler        *handler.AccountHandler
	EntryHandler          *handler.EntryHandler
	BalanceHandler        *handler.BalanceHandler
	LoanHandler           *handler.LoanHandler
	InstallmentHandler    *handler.InstallmentHandler
	TransferHandler       *handler.TransferHandler
	ReconciliationHandler *handler.ReconciliationHandler
	ExchangeRateHandler   *handler.ExchangeRateHandler
	HealthHandler         *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	Reporter         errorreport.Reporter
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger, cfg.Reporter).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Post("/{id}/entries", cfg.EntryHandler.Record)
			r.Get("/{id}/entries", cfg.EntryHandler.ListByAccount)
			r.Get("/{id}/balances", cfg.EntryHandler.ListBalances)
			r.Get("/{id}/balance/history", cfg.EntryHandler.GetHistoricalBalance)
			r.Post("/{id}/balances/sync", cfg.BalanceHandler.Sync)
			r.Get("/{id}/notices", cfg.BalanceHandler.Notices)
			r.Get("/{id}/reconciliation", cfg.ReconciliationHandler.Account)
		})

		r.Post("/balances/sync-all", cfg.BalanceHandler.SyncAll)

		// Loans
		r.Route("/loans", func(r chi.Router) {
			r.Post("/schedule/preview", cfg.LoanHandler.Preview)
			r.Post("/", cfg.LoanHandler.Create)
			r.Get("/{id}", cfg.LoanHandler.Get)
			r.Get("/{id}/installments", cfg.LoanHandler.Installments)
			r.Post("/{id}/extra-payments", cfg.LoanHandler.ExtraPayment)
			r.Post("/{id}/borrowings", cfg.LoanHandler.Borrowing)
			r.Get("/{id}/reconciliation", cfg.LoanHandler.Reconcile)
		})

		r.Post("/installments/{id}/post", cfg.InstallmentHandler.Post)
		r.Get("/transfers/{id}", cfg.TransferHandler.Get)

		r.Route("/exchange-rates", func(r chi.Router) {
			r.Post("/", cfg.ExchangeRateHandler.Save)
			r.Get("/{from}/{to}", cfg.ExchangeRateHandler.Get)
		})

		r.Get("/reconciliation/report", cfg.ReconciliationHandler.Report)
	})

	return r
}
