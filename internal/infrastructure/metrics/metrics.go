package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Balance sync metrics
	BalanceSyncs          *prometheus.CounterVec
	BalanceSyncDuration   prometheus.Histogram
	BalanceSyncPasses     prometheus.Histogram
	BalanceRowsUpserted   prometheus.Counter
	BalanceRowsPurged     prometheus.Counter
	BalanceDowngrades     *prometheus.CounterVec
	BalanceDeltaSpikes    prometheus.Counter
	BalanceLockContention prometheus.Counter
	FXFallbacks           *prometheus.CounterVec

	// Loan metrics
	SchedulesGenerated *prometheus.CounterVec
	InstallmentsPosted *prometheus.CounterVec
	ExtraPayments      *prometheus.CounterVec
	Borrowings         prometheus.Counter
	PostingDuration    prometheus.Histogram

	// Account metrics
	AccountsCreated prometheus.Counter
	EntriesRecorded *prometheus.CounterVec

	// Worker metrics
	SyncQueueDepth  prometheus.Gauge
	OutboxPublished *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Balance sync metrics
		BalanceSyncs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_balance_syncs_total",
				Help: "Balance materializations by result",
			},
			[]string{"result"},
		),
		BalanceSyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerbook_balance_sync_duration_seconds",
			Help:    "Duration of balance materializations",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		BalanceSyncPasses: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerbook_balance_sync_passes",
			Help:    "Recalculation passes used per materialization",
			Buckets: []float64{1, 2, 3, 4},
		}),
		BalanceRowsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerbook_balance_rows_upserted_total",
			Help: "Balance rows written",
		}),
		BalanceRowsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerbook_balance_rows_purged_total",
			Help: "Stale balance rows deleted",
		}),
		BalanceDowngrades: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_balance_downgrades_total",
				Help: "Windowed syncs rebuilt in full, by reason",
			},
			[]string{"reason"},
		),
		BalanceDeltaSpikes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerbook_balance_delta_spikes_total",
			Help: "Delta spikes detected during balance syncs",
		}),
		BalanceLockContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerbook_balance_lock_contention_total",
			Help: "Balance syncs abandoned because the account was locked",
		}),
		FXFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_fx_fallbacks_total",
				Help: "Conversions that fell back to a 1:1 rate",
			},
			[]string{"from", "to"},
		),

		// Loan metrics
		SchedulesGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_schedules_generated_total",
				Help: "Repayment schedules generated by method",
			},
			[]string{"method"},
		),
		InstallmentsPosted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_installments_posted_total",
				Help: "Installment postings by outcome",
			},
			[]string{"outcome"},
		),
		ExtraPayments: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_extra_payments_total",
				Help: "Extra loan payments by allocation",
			},
			[]string{"allocation"},
		),
		Borrowings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerbook_loan_borrowings_total",
			Help: "Additional borrowings booked",
		}),
		PostingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerbook_posting_duration_seconds",
			Help:    "Duration of loan money movements",
			Buckets: prometheus.DefBuckets,
		}),

		// Account metrics
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerbook_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		EntriesRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_entries_recorded_total",
				Help: "Ledger entries recorded by kind",
			},
			[]string{"kind"},
		),

		// Worker metrics
		SyncQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerbook_sync_queue_depth",
			Help: "Pending balance sync requests",
		}),
		OutboxPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_outbox_events_published_total",
				Help: "Outbox events published by type",
			},
			[]string{"event_type"},
		),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgerbook_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerbook_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerbook_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),
	}
}
