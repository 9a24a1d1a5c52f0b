package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/service"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/storage"
)

var coins = model.NewCoinSet("bitcoin", "ethereum", "matic-network")

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore records how often the store is read.
type countingStore struct {
	*storage.MemoryRepository
	reads atomic.Int32
	err   error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryRepository: storage.NewMemoryRepository()}
}

func (s *countingStore) LatestStat(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	s.reads.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.MemoryRepository.LatestStat(ctx, coin)
}

func (s *countingStore) RecentStats(ctx context.Context, coin model.Coin, limit int) ([]*model.PriceStat, error) {
	s.reads.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.MemoryRepository.RecentStats(ctx, coin, limit)
}

// MockCache implements repository.LatestStatCache for testing
type MockCache struct {
	entries map[model.Coin]*model.PriceStat
	getErr  error
	saves   int
	fills   int
}

func (c *MockCache) SaveLatest(ctx context.Context, stat *model.PriceStat) error {
	c.saves++
	c.entries[stat.Coin] = stat
	return nil
}

func (c *MockCache) FillLatest(ctx context.Context, stat *model.PriceStat) error {
	c.fills++
	if _, ok := c.entries[stat.Coin]; !ok {
		c.entries[stat.Coin] = stat
	}
	return nil
}

func (c *MockCache) GetLatest(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[coin], nil
}

func (c *MockCache) Invalidate(ctx context.Context, coin model.Coin) error {
	delete(c.entries, coin)
	return nil
}

func seed(t *testing.T, store *countingStore, coin model.Coin, prices ...float64) {
	t.Helper()
	for i, p := range prices {
		stat := model.NewPriceStat(coin, model.Quote{Price: p, MarketCap: p * 1000}, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.SaveStat(context.Background(), stat))
	}
}

func TestStatsService_Latest(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	seed(t, store, "bitcoin", 40000, 41000, 39500)
	svc := service.NewStatsService(store, nil, coins, 0, discardLogger())

	stat, err := svc.Latest(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 39500.0, stat.Price)
	assert.Equal(t, base.Add(2*time.Minute), stat.Timestamp)
}

func TestStatsService_LatestErrors(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	svc := service.NewStatsService(store, nil, coins, 0, discardLogger())

	_, err := svc.Latest(ctx, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, store.reads.Load(), "missing coin must not touch storage")

	_, err = svc.Latest(ctx, "dogecoin")
	assert.ErrorIs(t, err, model.ErrNoData)
	assert.Zero(t, store.reads.Load(), "coins outside the set must not touch storage")

	_, err = svc.Latest(ctx, "ethereum")
	assert.ErrorIs(t, err, model.ErrNoData)

	store.err = errors.New("connection refused")
	_, err = svc.Latest(ctx, "ethereum")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNoData)
}

func TestStatsService_LatestUsesCache(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	seed(t, store, "bitcoin", 40000)
	cache := &MockCache{entries: map[model.Coin]*model.PriceStat{}}
	svc := service.NewStatsService(store, cache, coins, 0, discardLogger())

	// Miss fills the cache from the store.
	first, err := svc.Latest(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.reads.Load())
	assert.Equal(t, 1, cache.fills)
	assert.Zero(t, cache.saves, "reads must not overwrite the cache")

	second, err := svc.Latest(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.reads.Load(), "hit must not read the store")
	assert.Equal(t, first.ID, second.ID)

	// A broken cache falls back to the store.
	cache.getErr = errors.New("redis down")
	third, err := svc.Latest(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.reads.Load())
	assert.Equal(t, first.ID, third.ID)
}

// ingestDuringRead stores a newer record and refreshes the cache while a
// reader is between its store read and its cache fill.
type ingestDuringRead struct {
	*countingStore
	cache *MockCache
	next  *model.PriceStat
}

func (s *ingestDuringRead) LatestStat(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	stat, err := s.countingStore.LatestStat(ctx, coin)
	if s.next != nil {
		if err := s.countingStore.SaveStat(ctx, s.next); err != nil {
			return nil, err
		}
		if err := s.cache.SaveLatest(ctx, s.next); err != nil {
			return nil, err
		}
		s.next = nil
	}
	return stat, err
}

func TestStatsService_LatestFillKeepsNewerIngestedRecord(t *testing.T) {
	ctx := context.Background()
	cache := &MockCache{entries: map[model.Coin]*model.PriceStat{}}
	store := &ingestDuringRead{
		countingStore: newCountingStore(),
		cache:         cache,
		next:          model.NewPriceStat("bitcoin", model.Quote{Price: 99999, MarketCap: 1}, base.Add(time.Hour)),
	}
	seed(t, store.countingStore, "bitcoin", 40000)
	svc := service.NewStatsService(store, cache, coins, 0, discardLogger())

	stale, err := svc.Latest(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 40000.0, stale.Price, "the in-flight read returns what it read")

	fresh, err := svc.Latest(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 99999.0, fresh.Price)
	assert.Equal(t, base.Add(time.Hour), fresh.Timestamp)
}

func TestStatsService_Deviation(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{name: "single record", prices: []float64{40000}, want: 0},
		{name: "three records", prices: []float64{10, 20, 30}, want: 8.16},
		{name: "identical prices", prices: []float64{5, 5, 5, 5}, want: 0},
		{name: "two records", prices: []float64{1, 2}, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			seed(t, store, "bitcoin", tt.prices...)
			svc := service.NewStatsService(store, nil, coins, 0, discardLogger())

			got, err := svc.Deviation(context.Background(), "bitcoin")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatsService_DeviationUsesNewestWindow(t *testing.T) {
	store := newCountingStore()
	prices := make([]float64, 150)
	for i := range prices {
		prices[i] = float64(i + 1)
	}
	seed(t, store, "bitcoin", prices...)
	svc := service.NewStatsService(store, nil, coins, 0, discardLogger())

	got, err := svc.Deviation(context.Background(), "bitcoin")
	require.NoError(t, err)
	// Population std dev of 51..150; all 150 records would give 43.30.
	assert.Equal(t, 28.87, got)

	// Changing a record outside the window does not move the result.
	older := newCountingStore()
	prices[0] = 1e9
	seed(t, older, "bitcoin", prices...)
	got, err = service.NewStatsService(older, nil, coins, 0, discardLogger()).Deviation(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 28.87, got)
}

func TestStatsService_DeviationErrors(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	svc := service.NewStatsService(store, nil, coins, 0, discardLogger())

	_, err := svc.Deviation(ctx, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, store.reads.Load())

	_, err = svc.Deviation(ctx, "matic-network")
	assert.ErrorIs(t, err, model.ErrNoData)

	store.err = errors.New("timeout")
	_, err = svc.Deviation(ctx, "matic-network")
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNoData)
}

func TestPopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, service.PopulationStdDev(nil))
	assert.InDelta(t, 2.0, service.PopulationStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 8.16, service.RoundTo(8.16496580927726, 2))
	assert.Equal(t, 0.13, service.RoundTo(0.125, 2))
}
