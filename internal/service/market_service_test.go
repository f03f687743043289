package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongdcdev/shade-trader/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSnapshotCache struct {
	mu     sync.Mutex
	snap   domain.MarketSnapshot
	getErr error
	setErr error
	sets   int
}

func (m *mockSnapshotCache) Get(context.Context) (domain.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.MarketSnapshot{}, m.getErr
	}
	return m.snap, nil
}

func (m *mockSnapshotCache) Set(_ context.Context, snap domain.MarketSnapshot, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.snap = snap
	m.sets++
	return nil
}

type mockProvider struct {
	mu    sync.Mutex
	calls int
	snap  domain.MarketSnapshot
	err   error
}

func (m *mockProvider) Snapshot(context.Context, []string) (domain.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.snap, m.err
}

func TestSnapshotCacheHit(t *testing.T) {
	cache := &mockSnapshotCache{snap: domain.MarketSnapshot{
		Prices:    map[string]float64{"NEAR": 3.1, "BTC": 95000},
		FetchedAt: time.Now(),
	}}
	provider := &mockProvider{}
	svc := NewMarketService(cache, provider, time.Minute, discardLogger())

	snap, err := svc.Snapshot(context.Background(), []string{"NEAR", "BTC"})
	require.NoError(t, err)
	price, ok := snap.Price("NEAR")
	require.True(t, ok)
	assert.Equal(t, 3.1, price)
	assert.Equal(t, 0, provider.calls)
}

func TestSnapshotCacheHitFoldsSymbolCase(t *testing.T) {
	cache := &mockSnapshotCache{snap: domain.MarketSnapshot{
		Prices:    map[string]float64{"NEAR": 3.1},
		FetchedAt: time.Now(),
	}}
	provider := &mockProvider{}
	svc := NewMarketService(cache, provider, time.Minute, discardLogger())

	// an order placed with a lowercase symbol reads the uppercase entry
	snap, err := svc.Snapshot(context.Background(), []string{"near"})
	require.NoError(t, err)
	price, ok := snap.Price("near")
	require.True(t, ok)
	assert.Equal(t, 3.1, price)
	assert.Equal(t, 0, provider.calls)
}

func TestSnapshotCacheMissOnUncoveredSymbol(t *testing.T) {
	cache := &mockSnapshotCache{snap: domain.MarketSnapshot{
		Prices: map[string]float64{"NEAR": 3.1},
	}}
	provider := &mockProvider{snap: domain.MarketSnapshot{
		Prices: map[string]float64{"NEAR": 3.1, "DOGE": 0.4},
	}}
	svc := NewMarketService(cache, provider, time.Minute, discardLogger())

	snap, err := svc.Snapshot(context.Background(), []string{"NEAR", "DOGE"})
	require.NoError(t, err)
	_, ok := snap.Price("DOGE")
	assert.True(t, ok)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, cache.sets)
}

func TestSnapshotEmptyCacheFallsBack(t *testing.T) {
	cache := &mockSnapshotCache{getErr: domain.ErrNotFound}
	provider := &mockProvider{snap: domain.MarketSnapshot{
		Prices: map[string]float64{"NEAR": 3.1},
	}}
	svc := NewMarketService(cache, provider, time.Minute, discardLogger())

	_, err := svc.Snapshot(context.Background(), []string{"NEAR"})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestSnapshotCacheWriteFailureTolerated(t *testing.T) {
	cache := &mockSnapshotCache{getErr: domain.ErrNotFound, setErr: errors.New("redis down")}
	provider := &mockProvider{snap: domain.MarketSnapshot{
		Prices: map[string]float64{"NEAR": 3.1},
	}}
	svc := NewMarketService(cache, provider, time.Minute, discardLogger())

	snap, err := svc.Snapshot(context.Background(), []string{"NEAR"})
	require.NoError(t, err)
	_, ok := snap.Price("NEAR")
	assert.True(t, ok)
}

func TestSnapshotProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("upstream 500")}
	svc := NewMarketService(nil, provider, time.Minute, discardLogger())

	_, err := svc.Snapshot(context.Background(), []string{"NEAR"})
	require.Error(t, err)
}
