package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Namanahuja82/koinx-backend-assignment/config"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/app"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "local",
		HTTPPort:               "0",
		ShutdownTimeout:        time.Second,
		StoreDriver:            config.StoreMemory,
		KafkaBrokers:           []string{"127.0.0.1:1"},
		KafkaTopic:             "crypto.update",
		KafkaConsumerGroup:     "coinstats-api",
		PublishInterval:        15 * time.Minute,
		BusConnectRetryDelay:   5 * time.Second,
		BusResubscribeDelay:    time.Second,
		BusResubscribeMaxDelay: 30 * time.Second,
		Coins:                  testCoins,
		PriceSource:            config.SourceCoinGecko,
		PriceSourceCurrency:    "usd",
		PriceSourceTimeout:     time.Second,
		DeviationWindow:        100,
	}
}

func TestNewAPIApp_MemoryStoreEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":40000,"usd_market_cap":800000000,"usd_24h_change":3.4}}`))
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.PriceSourceURL = upstream.URL
	ctx := context.Background()

	a, err := app.NewAPIApp(ctx, cfg, discardLogger())
	require.NoError(t, err)
	defer a.Cleanup(ctx)

	assert.Nil(t, a.Cache, "redis is off without REDIS_ADDR")
	require.NotNil(t, a.Ingestor)

	stored, err := a.Ingestor.FetchAndStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	latest, err := a.StatsService.Latest(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 40000.0, latest.Price)

	dev, err := a.StatsService.Deviation(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Zero(t, dev)

	_, err = a.StatsService.Latest(ctx, "ethereum")
	assert.ErrorIs(t, err, model.ErrNoData)
}

func TestNewAPIApp_UnknownSource(t *testing.T) {
	cfg := testConfig()
	cfg.PriceSource = "binance"

	_, err := app.NewAPIApp(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}

func TestNewWorkerApp(t *testing.T) {
	a := app.NewWorkerApp(testConfig(), discardLogger())
	defer a.Cleanup(context.Background())

	require.NotNil(t, a.Publisher)
	require.NotNil(t, a.KafkaProducer)
	assert.False(t, a.KafkaProducer.IsConnected())
}
