package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// BalanceSyncLockPrefix namespaces the per-account materializer lock.
	BalanceSyncLockPrefix = "balance-sync:"

	// DefaultSpikeMultiplier is how many times the day's flow magnitude the
	// latest balance may move before the result is treated as suspect.
	DefaultSpikeMultiplier = 3

	// DefaultMaxPasses caps recalculation passes per materialization.
	DefaultMaxPasses = 2

	// DefaultPageSize and MaxPageSize bound list endpoints.
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// BatchSizeFor returns the upsert chunk size for a result of n rows. Large
// recalculations use smaller chunks to keep each statement short.
func BatchSizeFor(n int) int {
	switch {
	case n <= 5000:
		return 1000
	case n <= 50000:
		return 500
	default:
		return 250
	}
}
