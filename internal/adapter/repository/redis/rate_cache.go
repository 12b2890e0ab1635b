package redis

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/metrics"
	"github.com/iho/eodledger/internal/usecase"
)

// CachedRateRepository caches rate master lookups. Rates are read once per
// account per job, so a cycle asks the same (code, date) pair many times.
// Cache failures fall through to the wrapped repository.
type CachedRateRepository struct {
	next    usecase.RateRepository
	cache   usecase.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewCachedRateRepository wraps next with cache.
func NewCachedRateRepository(next usecase.RateRepository, cache usecase.Cache, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) *CachedRateRepository {
	return &CachedRateRepository{next: next, cache: cache, ttl: ttl, metrics: m, logger: logger}
}

// LatestInterestRate implements usecase.RateRepository.
func (r *CachedRateRepository) LatestInterestRate(ctx context.Context, rateCode string, date time.Time) (decimal.Decimal, error) {
	return r.lookup(ctx, "rate:interest:"+rateCode+":"+domain.FormatDay(date), func() (decimal.Decimal, error) {
		return r.next.LatestInterestRate(ctx, rateCode, date)
	})
}

// MidRate implements usecase.RateRepository.
func (r *CachedRateRepository) MidRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	return r.lookup(ctx, "rate:mid:"+currency+":"+domain.FormatDay(date), func() (decimal.Decimal, error) {
		return r.next.MidRate(ctx, currency, date)
	})
}

func (r *CachedRateRepository) lookup(ctx context.Context, key string, load func() (decimal.Decimal, error)) (decimal.Decimal, error) {
	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		if rate, perr := decimal.NewFromString(cached); perr == nil {
			return rate, nil
		}
	case !errors.Is(err, domain.ErrCacheMiss):
		r.metrics.RedisError("rate_cache_get")
		r.logger.Warn().Err(err).Str("key", key).Msg("rate cache read failed")
	}

	rate, err := load()
	if err != nil {
		return decimal.Zero, err
	}

	if err := r.cache.Set(ctx, key, rate.String(), r.ttl); err != nil {
		r.metrics.RedisError("rate_cache_set")
		r.logger.Warn().Err(err).Str("key", key).Msg("rate cache write failed")
	}
	return rate, nil
}
