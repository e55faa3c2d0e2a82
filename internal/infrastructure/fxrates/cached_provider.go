// Package fxrates caches exchange rate lookups in front of the rate store.
package fxrates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const keyPrefix = "fx:"

// CachedProvider serves rates from a cache and falls through to the
// underlying provider on a miss. Missing rates are never cached.
type CachedProvider struct {
	next   usecase.ExchangeRateProvider
	cache  usecase.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next usecase.ExchangeRateProvider, cache usecase.Cache, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Rate implements usecase.ExchangeRateProvider.
func (p *CachedProvider) Rate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), nil
	}

	key := cacheKey(from, to, date)
	if raw, err := p.cache.Get(ctx, key); err == nil {
		if rate, perr := decimal.NewFromString(string(raw)); perr == nil {
			return rate, nil
		}
		p.logger.Warn().Str("key", key).Msg("discarding unparsable cached rate")
	}

	rate, err := p.next.Rate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, err
	}

	// A cache write failure only costs the next lookup a round trip.
	if err := p.cache.Set(ctx, key, []byte(rate.String()), p.ttl); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("failed to cache exchange rate")
	}
	return rate, nil
}

func cacheKey(from, to string, date time.Time) string {
	return fmt.Sprintf("%s%s:%s:%s", keyPrefix, strings.ToUpper(from), strings.ToUpper(to), domain.FormatDate(date))
}
