package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Namanahuja82/koinx-backend-assignment/config"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/service"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/useCases"
	ws "github.com/Namanahuja82/koinx-backend-assignment/internal/handlers/websocket"
	redisrepo "github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/cache"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/queue"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/source"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/storage"
)

// AppContext holds all app dependencies. The worker only fills the
// publisher half; the API fills the rest.
type AppContext struct {
	Config *config.Config
	Clock  clock.Clock

	Store        repository.PriceStatStore
	Cache        *redisrepo.RedisRepository
	StatsService *service.StatsService
	Broadcaster  *ws.WebSocketBroadcaster
	Ingestor     *Ingestor
	Publisher    *TriggerPublisher

	KafkaConsumer *queue.KafkaTriggerConsumer
	KafkaProducer *queue.KafkaTriggerProducer

	log *slog.Logger
}

func kafkaConfig(cfg *config.Config) queue.KafkaConfig {
	return queue.KafkaConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaTopic,
		ConsumerGroup: cfg.KafkaConsumerGroup,
		DialTimeout:   10 * time.Second,
	}
}

// NewWorkerApp wires the scheduler: a Kafka producer driven by the publisher.
// Nothing connects until the publisher runs.
func NewWorkerApp(cfg *config.Config, log *slog.Logger) *AppContext {
	app := &AppContext{Config: cfg, Clock: clock.New(), log: log}

	app.KafkaProducer = queue.NewKafkaTriggerProducer(kafkaConfig(cfg), log)
	app.Publisher = NewTriggerPublisher(app.KafkaProducer, PublisherConfig{
		Interval:          cfg.PublishInterval,
		ConnectRetryDelay: cfg.BusConnectRetryDelay,
	}, app.Clock, log)

	log.Info("worker initialized",
		slog.Duration("interval", cfg.PublishInterval),
		slog.String("topic", cfg.KafkaTopic))
	return app
}

// NewAPIApp wires the server: storage, optional cache, query service,
// websocket feed and the trigger ingestor. Storage must be reachable; the
// cache and the bus may come up later.
func NewAPIApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*AppContext, error) {
	app := &AppContext{Config: cfg, Clock: clock.New(), log: log}

	backend, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = storage.NewValidatingStore(backend, cfg.Coins, app.Clock)
	log.Info("price stat store initialized", slog.String("driver", cfg.StoreDriver))

	// Keep the interface nil when the cache is disabled.
	var statsCache repository.LatestStatCache
	if cfg.RedisAddr != "" {
		app.Cache = redisrepo.NewRedisRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := app.Cache.Ping(ctx); err != nil {
			log.Warn("redis unreachable, reads will fall back to the store until it recovers",
				slog.String("addr", cfg.RedisAddr), slog.Any("error", err))
		} else {
			log.Info("redis cache initialized", slog.String("addr", cfg.RedisAddr))
		}
		statsCache = app.Cache
	}

	app.StatsService = service.NewStatsService(app.Store, statsCache, cfg.Coins, cfg.DeviationWindow, log)
	app.Broadcaster = ws.NewWebSocketBroadcaster(log)

	priceSource, err := newPriceSource(cfg, log)
	if err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	app.KafkaConsumer = queue.NewKafkaTriggerConsumer(kafkaConfig(cfg), log)
	app.Ingestor = NewIngestor(app.KafkaConsumer, priceSource, app.Store, statsCache, app.Broadcaster,
		IngestorConfig{
			Coins:              cfg.Coins,
			FetchTimeout:       cfg.PriceSourceTimeout,
			ResubscribeInitial: cfg.BusResubscribeDelay,
			ResubscribeMax:     cfg.BusResubscribeMaxDelay,
		}, app.Clock, log)

	log.Info("api initialized", slog.Any("coins", cfg.Coins.IDs()))
	return app, nil
}

func newStore(ctx context.Context, cfg *config.Config) (repository.PriceStatStore, error) {
	switch cfg.StoreDriver {
	case config.StoreClickHouse:
		repo, err := storage.NewClickHouseRepository(ctx, storage.ClickHouseConfig{
			Addr:     cfg.ClickhouseAddr,
			Database: cfg.ClickhouseDatabase,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
			Timeout:  cfg.ClickhouseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		return repo, nil
	case config.StorePostgres:
		repo, err := storage.NewPostgresRepository(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return repo, nil
	case config.StoreMemory:
		return storage.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newPriceSource(cfg *config.Config, log *slog.Logger) (useCases.PriceSource, error) {
	switch cfg.PriceSource {
	case config.SourceCoinGecko:
		return source.NewCoinGeckoClient(source.CoinGeckoConfig{
			BaseURL:  cfg.PriceSourceURL,
			Currency: cfg.PriceSourceCurrency,
			APIKey:   cfg.PriceSourceAPIKey,
			Timeout:  cfg.PriceSourceTimeout,
		}, log), nil
	case config.SourceRandom:
		log.Warn("using random price source, quotes are not real")
		return source.NewRandomSource(uint64(time.Now().UnixNano())), nil
	default:
		return nil, fmt.Errorf("unknown price source %q", cfg.PriceSource)
	}
}

// Cleanup performs graceful shutdown of all components. The bus goes first
// so no new cycle starts while storage is closing.
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.KafkaConsumer != nil {
		a.log.Info("closing kafka consumer")
		if err := a.KafkaConsumer.Close(); err != nil {
			a.log.Error("error closing kafka consumer", slog.Any("error", err))
		}
	}

	if a.KafkaProducer != nil {
		a.log.Info("closing kafka producer")
		if err := a.KafkaProducer.Close(); err != nil {
			a.log.Error("error closing kafka producer", slog.Any("error", err))
		}
	}

	if a.Broadcaster != nil {
		a.Broadcaster.Close()
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Error("error closing store", slog.Any("error", err))
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.log.Error("error closing redis", slog.Any("error", err))
		}
	}

	a.log.Info("all resources cleaned up")
}
