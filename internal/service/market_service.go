// Package service contains the application services sitting between the
// HTTP/scheduler layers and the stores, caches and settlement engine.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongdcdev/shade-trader/internal/domain"
	"github.com/cuongdcdev/shade-trader/internal/metrics"
)

// DefaultSnapshotTTL bounds how stale a cached snapshot may be before
// the upstream provider is queried again.
const DefaultSnapshotTTL = 60 * time.Second

// MarketService serves market snapshots through a cache so one snapshot
// feeds every reader within a TTL window. It implements
// domain.MarketDataProvider and can stand in wherever one is expected.
type MarketService struct {
	cache    domain.SnapshotCache
	provider domain.MarketDataProvider
	ttl      time.Duration
	logger   *slog.Logger
}

var _ domain.MarketDataProvider = (*MarketService)(nil)

// NewMarketService creates a MarketService. A nil cache disables
// caching; every call then goes straight to the provider.
func NewMarketService(cache domain.SnapshotCache, provider domain.MarketDataProvider, ttl time.Duration, logger *slog.Logger) *MarketService {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &MarketService{
		cache:    cache,
		provider: provider,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "market_service")),
	}
}

// Snapshot returns a snapshot covering the requested symbols, from cache
// when one is fresh and complete, otherwise from the provider. Cache
// write failures are logged, not propagated; a working provider must not
// be hidden by a broken cache.
func (s *MarketService) Snapshot(ctx context.Context, symbols []string) (domain.MarketSnapshot, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		switch {
		case err == nil && covers(cached, symbols):
			metrics.SnapshotFetches.WithLabelValues("cache_hit").Inc()
			return cached, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("snapshot cache read failed", slog.String("error", err.Error()))
		}
	}

	snap, err := s.provider.Snapshot(ctx, symbols)
	if err != nil {
		metrics.SnapshotFetches.WithLabelValues("error").Inc()
		return domain.MarketSnapshot{}, err
	}
	metrics.SnapshotFetches.WithLabelValues("fetched").Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap, s.ttl); err != nil {
			s.logger.Warn("snapshot cache write failed", slog.String("error", err.Error()))
		}
	}
	return snap, nil
}

// covers reports whether a cached snapshot has a price for every
// requested symbol. A cache entry written for a smaller symbol set must
// not satisfy a broader request.
func covers(snap domain.MarketSnapshot, symbols []string) bool {
	for _, sym := range symbols {
		if _, ok := snap.Price(sym); !ok {
			return false
		}
	}
	return true
}
