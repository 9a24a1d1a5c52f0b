// Package service provides the domain services that implement core business logic.
// This package depends only on domain models and repository interfaces (not implementations).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/useCases"
)

// DefaultDeviationWindow is the number of newest records Deviation considers.
const DefaultDeviationWindow = 100

// StatsService answers "latest value" and "rolling standard deviation"
// queries. Both are pure reads.
type StatsService struct {
	store  repository.PriceStatStore
	cache  repository.LatestStatCache // optional
	coins  model.CoinSet
	window int
	log    *slog.Logger
}

// NewStatsService wires the service to its storage backends.
//
// Parameters:
//   - store: source of truth for PriceStat records
//   - cache: latest-record cache, may be nil
//   - coins: the closed coin set; other coins never have data
//   - window: how many newest records Deviation uses; <= 0 means DefaultDeviationWindow
func NewStatsService(store repository.PriceStatStore, cache repository.LatestStatCache, coins model.CoinSet, window int, log *slog.Logger) *StatsService {
	if window <= 0 {
		window = DefaultDeviationWindow
	}
	return &StatsService{
		store:  store,
		cache:  cache,
		coins:  coins,
		window: window,
		log:    log.With(slog.String("component", "stats_service")),
	}
}

var _ useCases.StatsQuery = (*StatsService)(nil)

// Latest returns the most recent record for coin.
func (s *StatsService) Latest(ctx context.Context, coin string) (*model.PriceStat, error) {
	c, err := s.resolveCoin(coin)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetLatest(ctx, c)
		if err != nil {
			s.log.Warn("latest stat cache read failed", slog.String("coin", coin), slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	stat, err := s.store.LatestStat(ctx, c)
	if err != nil {
		if errors.Is(err, model.ErrNoData) {
			return nil, err
		}
		return nil, fmt.Errorf("latest stat for %s: %w", coin, err)
	}

	if s.cache != nil {
		if err := s.cache.FillLatest(ctx, stat); err != nil {
			s.log.Warn("latest stat cache fill failed", slog.String("coin", coin), slog.Any("error", err))
		}
	}
	return stat, nil
}

// Deviation returns the population standard deviation of the price over the
// newest records of coin, rounded to two decimal places.
func (s *StatsService) Deviation(ctx context.Context, coin string) (float64, error) {
	c, err := s.resolveCoin(coin)
	if err != nil {
		return 0, err
	}

	stats, err := s.store.RecentStats(ctx, c, s.window)
	if err != nil {
		return 0, fmt.Errorf("recent stats for %s: %w", coin, err)
	}
	if len(stats) == 0 {
		return 0, model.ErrNoData
	}

	prices := make([]float64, len(stats))
	for i, st := range stats {
		prices[i] = st.Price
	}
	return RoundTo(PopulationStdDev(prices), 2), nil
}

// resolveCoin rejects a missing coin before any storage access. Coins outside
// the configured set cannot have records, so they short-circuit to ErrNoData.
func (s *StatsService) resolveCoin(coin string) (model.Coin, error) {
	if coin == "" {
		return "", model.ErrNotFound
	}
	c := model.Coin(coin)
	if !s.coins.Contains(c) {
		return "", model.ErrNoData
	}
	return c, nil
}
