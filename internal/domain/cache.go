package domain

import (
	"context"
	"time"
)

// SnapshotCache holds the most recent market snapshot so the provider is
// hit at most once per TTL regardless of how many orders read it.
type SnapshotCache interface {
	Set(ctx context.Context, snap MarketSnapshot, ttl time.Duration) error
	Get(ctx context.Context) (MarketSnapshot, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter bounds request rates per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// MarketDataProvider serves the metrics conditions are evaluated against.
type MarketDataProvider interface {
	Snapshot(ctx context.Context, symbols []string) (MarketSnapshot, error)
}
