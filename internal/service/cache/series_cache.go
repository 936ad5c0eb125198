// Package cache decorates series providers with a read-through cache.
package cache

import (
	"context"
	"errors"
	"time"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	"TokenScope/internal/service/metrics"
	pkgcache "TokenScope/pkg/cache"
	"TokenScope/pkg/logger"
)

const (
	DefaultTTL = 5 * time.Minute
	keyPrefix  = "series"
)

// SeriesCache serves FetchSeries from a cache keyed by (token, timeframe,
// limit) and fills it from the wrapped provider on a miss. Cache failures
// are logged and never fail the fetch.
type SeriesCache struct {
	next  repository.SeriesProvider
	store pkgcache.Service
	ttl   time.Duration
	log   *logger.Logger
}

func NewSeriesCache(next repository.SeriesProvider, store pkgcache.Service, ttl time.Duration, log *logger.Logger) *SeriesCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &SeriesCache{next: next, store: store, ttl: ttl, log: log}
}

func Key(tokenID string, tf repository.Timeframe, limit int) string {
	return pkgcache.GenerateKeyWithParams(keyPrefix, tokenID, tf, limit)
}

func (c *SeriesCache) FetchSeries(ctx context.Context, tokenID string, tf repository.Timeframe, limit int) ([]models.Candle, error) {
	key := Key(tokenID, tf, limit)

	var cached []models.Candle
	err := c.store.Get(ctx, key, &cached)
	switch {
	case err == nil && len(cached) > 0:
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return cached, nil
	case err != nil && !errors.Is(err, pkgcache.ErrCacheMiss):
		c.log.Warn("series cache get failed", logger.String("key", key), logger.Error(err))
	}
	metrics.CacheRequests.WithLabelValues("miss").Inc()

	series, err := c.next.FetchSeries(ctx, tokenID, tf, limit)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, series, c.ttl); err != nil {
		c.log.Warn("series cache set failed", logger.String("key", key), logger.Error(err))
	}
	return series, nil
}

// Invalidate drops every cached series for a token.
func (c *SeriesCache) Invalidate(ctx context.Context, tokenID string) error {
	return c.store.DeleteByPattern(ctx, pkgcache.BuildPattern(pkgcache.GenerateKeyWithParams(keyPrefix, tokenID)+":"))
}

var _ repository.SeriesProvider = (*SeriesCache)(nil)
