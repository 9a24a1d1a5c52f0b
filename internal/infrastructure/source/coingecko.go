package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/useCases"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	DefaultCurrency     = "usd"

	apiKeyHeader = "x-cg-demo-api-key"
)

// CoinGeckoConfig configures the CoinGecko simple-price client.
type CoinGeckoConfig struct {
	BaseURL  string
	Currency string
	APIKey   string
	Timeout  time.Duration
}

// CoinGeckoClient fetches quotes from the CoinGecko /simple/price endpoint.
type CoinGeckoClient struct {
	cfg    CoinGeckoConfig
	client *http.Client
	log    *slog.Logger
}

func NewCoinGeckoClient(cfg CoinGeckoConfig, log *slog.Logger) *CoinGeckoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCoinGeckoURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CoinGeckoClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With(slog.String("component", "coingecko")),
	}
}

var _ useCases.PriceSource = (*CoinGeckoClient)(nil)

// FetchQuotes requests every coin in one call. Coins CoinGecko does not
// know, or returns without a price, are left out of the result.
func (c *CoinGeckoClient) FetchQuotes(ctx context.Context, coins model.CoinSet) (model.Quotes, error) {
	if coins.Len() == 0 {
		return model.Quotes{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(coins.IDs(), ","))
	q.Set("vs_currencies", c.cfg.Currency)
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", model.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status %d: %s", model.ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload map[string]map[string]*float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", model.ErrSourceUnavailable, err)
	}

	return c.toQuotes(coins, payload), nil
}

func (c *CoinGeckoClient) toQuotes(coins model.CoinSet, payload map[string]map[string]*float64) model.Quotes {
	cur := c.cfg.Currency
	quotes := make(model.Quotes, len(payload))
	for _, coin := range coins.Coins() {
		fields, ok := payload[string(coin)]
		if !ok {
			continue
		}
		price := fields[cur]
		if price == nil {
			c.log.Warn("quote without price", slog.String("coin", string(coin)))
			continue
		}
		quotes[coin] = model.Quote{
			Price:     *price,
			MarketCap: deref(fields[cur+"_market_cap"]),
			Change24h: deref(fields[cur+"_24h_change"]),
		}
	}
	return quotes
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
