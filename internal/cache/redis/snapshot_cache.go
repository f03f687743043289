package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

const snapshotKey = "market:snapshot"

// SnapshotCache implements domain.SnapshotCache as one JSON blob under a
// single key with a TTL. There is exactly one current snapshot, so no
// key schema beyond that is needed.
type SnapshotCache struct {
	rdb *redis.Client
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

// cachedSnapshot is the stored JSON shape.
type cachedSnapshot struct {
	Prices       map[string]float64 `json:"prices"`
	MarketCaps   map[string]float64 `json:"market_caps"`
	BTCDominance float64            `json:"btc_dominance"`
	FetchedAt    time.Time          `json:"fetched_at"`
}

// Set stores the snapshot, replacing any previous one.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.MarketSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(cachedSnapshot{
		Prices:       snap.Prices,
		MarketCaps:   snap.MarketCaps,
		BTCDominance: snap.BTCDominance,
		FetchedAt:    snap.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot: %w", err)
	}
	return nil
}

// Get retrieves the current snapshot. It returns domain.ErrNotFound when
// the key is absent or expired.
func (sc *SnapshotCache) Get(ctx context.Context) (domain.MarketSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot: %w", err)
	}

	var cached cachedSnapshot
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal snapshot: %w", err)
	}
	return domain.MarketSnapshot{
		Prices:       cached.Prices,
		MarketCaps:   cached.MarketCaps,
		BTCDominance: cached.BTCDominance,
		FetchedAt:    cached.FetchedAt,
	}, nil
}
