package useCases

import (
	"context"
	"net/http"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
)

// StatsQuery answers read queries against stored price history.
type StatsQuery interface {
	Latest(ctx context.Context, coin string) (*model.PriceStat, error)
	Deviation(ctx context.Context, coin string) (float64, error)
}

// PriceSource fetches current quotes for a set of coins. Coins the upstream
// does not recognize are left out of the result.
type PriceSource interface {
	FetchQuotes(ctx context.Context, coins model.CoinSet) (model.Quotes, error)
}

// Broadcaster pushes freshly stored records to live subscribers.
type Broadcaster interface {
	BroadcastStat(stat *model.PriceStat)
	Handler() http.HandlerFunc
}
