package source

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/useCases"
)

// RandomSource generates plausible quotes without any network access. Each
// coin's price follows a bounded random walk so repeated fetches produce a
// non-zero deviation. Useful for local runs and demos.
type RandomSource struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[model.Coin]float64
}

var basePrices = map[model.Coin]float64{
	"bitcoin":       60000,
	"ethereum":      3000,
	"matic-network": 0.7,
}

func NewRandomSource(seed uint64) *RandomSource {
	return &RandomSource{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		prices: make(map[model.Coin]float64),
	}
}

var _ useCases.PriceSource = (*RandomSource)(nil)

func (s *RandomSource) FetchQuotes(ctx context.Context, coins model.CoinSet) (model.Quotes, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quotes := make(model.Quotes, coins.Len())
	for _, coin := range coins.Coins() {
		prev, ok := s.prices[coin]
		if !ok {
			prev, ok = basePrices[coin]
			if !ok {
				prev = 1 + s.rng.Float64()*99
			}
		}
		// Step at most 2% either way.
		change := (s.rng.Float64()*2 - 1) * 0.02
		price := prev * (1 + change)
		s.prices[coin] = price

		quotes[coin] = model.Quote{
			Price:     price,
			MarketCap: price * float64(1_000_000+s.rng.IntN(9_000_000)),
			Change24h: change * 100,
		}
	}
	return quotes, nil
}
