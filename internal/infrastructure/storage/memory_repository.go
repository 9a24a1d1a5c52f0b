package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
)

// MemoryRepository keeps records in process memory. It backs tests and
// STORE_DRIVER=memory; nothing survives a restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	stats map[model.Coin][]model.PriceStat // insertion order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{stats: make(map[model.Coin][]model.PriceStat)}
}

var _ repository.PriceStatStore = (*MemoryRepository)(nil)

func (r *MemoryRepository) SaveStat(ctx context.Context, stat *model.PriceStat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats[stat.Coin] = append(r.stats[stat.Coin], *stat)
	return nil
}

func (r *MemoryRepository) LatestStat(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	recent, err := r.RecentStats(ctx, coin, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, model.ErrNoData
	}
	return recent[0], nil
}

func (r *MemoryRepository) RecentStats(ctx context.Context, coin model.Coin, limit int) ([]*model.PriceStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	list := r.stats[coin]
	// Newest insertion first, so the stable sort below breaks timestamp ties
	// in favour of the later write.
	out := make([]*model.PriceStat, len(list))
	for i := range list {
		st := list[len(list)-1-i]
		out[i] = &st
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored records for coin.
func (r *MemoryRepository) Count(coin model.Coin) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stats[coin])
}

func (r *MemoryRepository) Close() error { return nil }
