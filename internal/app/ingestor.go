package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/repository"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/useCases"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/queue"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/metrics"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/resilience"
)

const (
	DefaultFetchTimeout       = 10 * time.Second
	DefaultResubscribeInitial = time.Second
	DefaultResubscribeMax     = 30 * time.Second
)

type IngestorConfig struct {
	Coins              model.CoinSet
	FetchTimeout       time.Duration
	ResubscribeInitial time.Duration
	ResubscribeMax     time.Duration
}

// Ingestor listens for update triggers and runs one ingestion cycle per
// "update" trigger: fetch quotes, store one record per returned coin,
// refresh the latest-record cache and push the record to live subscribers.
type Ingestor struct {
	Consumer    queue.TriggerConsumer
	Source      useCases.PriceSource
	Store       repository.PriceStatStore
	Cache       repository.LatestStatCache // optional
	Broadcaster useCases.Broadcaster       // optional

	// OnDisconnect is called with the error that ended a subscription,
	// before resubscribing.
	OnDisconnect func(err error)

	cfg   IngestorConfig
	clock clock.Clock
	log   *slog.Logger
}

func NewIngestor(
	consumer queue.TriggerConsumer,
	source useCases.PriceSource,
	store repository.PriceStatStore,
	cache repository.LatestStatCache,
	broadcaster useCases.Broadcaster,
	cfg IngestorConfig,
	clk clock.Clock,
	log *slog.Logger,
) *Ingestor {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.ResubscribeInitial <= 0 {
		cfg.ResubscribeInitial = DefaultResubscribeInitial
	}
	if cfg.ResubscribeMax < cfg.ResubscribeInitial {
		cfg.ResubscribeMax = max(DefaultResubscribeMax, cfg.ResubscribeInitial)
	}
	return &Ingestor{
		Consumer:    consumer,
		Source:      source,
		Store:       store,
		Cache:       cache,
		Broadcaster: broadcaster,
		cfg:         cfg,
		clock:       clk,
		log:         log.With(slog.String("component", "ingestor")),
	}
}

var _ Processor = (*Ingestor)(nil)

// Run subscribes and consumes until ctx is cancelled. A broken subscription
// is replaced with backoff; Run never gives up on its own.
func (i *Ingestor) Run(ctx context.Context) error {
	policy := resilience.Exponential(i.cfg.ResubscribeInitial, i.cfg.ResubscribeMax)
	for {
		var sub queue.Subscription
		err := resilience.Retry(ctx, i.clock, policy, func(ctx context.Context) error {
			s, err := i.Consumer.Subscribe(ctx)
			if err != nil {
				metrics.BusConnects.WithLabelValues("consumer", "error").Inc()
				return err
			}
			metrics.BusConnects.WithLabelValues("consumer", "ok").Inc()
			sub = s
			return nil
		}, func(err error, next time.Duration) {
			i.log.Warn("subscribe failed, retrying", slog.Any("error", err), slog.Duration("retry_in", next))
		})
		if err != nil {
			// Retry only fails once ctx is done.
			return nil
		}

		err = i.consume(ctx, sub)
		_ = sub.Close()
		if ctx.Err() != nil {
			i.log.Info("ingestor stopped")
			return nil
		}

		i.log.Warn("subscription lost, resubscribing", slog.Any("error", err))
		if i.OnDisconnect != nil {
			i.OnDisconnect(err)
		}
	}
}

func (i *Ingestor) consume(ctx context.Context, sub queue.Subscription) error {
	for {
		delivery, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		if delivery.Trigger.IsUpdate() {
			if _, err := i.FetchAndStore(ctx); err != nil {
				i.log.Error("ingestion cycle failed", slog.Any("error", err))
			}
		}

		// Commit the message
		if err := delivery.Ack(ctx); err != nil && ctx.Err() == nil {
			i.log.Warn("failed to ack trigger", slog.Any("error", err))
		}
	}
}

// FetchAndStore runs one ingestion cycle and returns how many records were
// stored. A fetch failure aborts the cycle with nothing written; a failed
// write for one coin does not stop the others.
func (i *Ingestor) FetchAndStore(ctx context.Context) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, i.cfg.FetchTimeout)
	start := time.Now()
	quotes, err := i.Source.FetchQuotes(fetchCtx, i.cfg.Coins)
	cancel()
	metrics.SourceFetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IngestCycles.WithLabelValues("fetch_error").Inc()
		return 0, fmt.Errorf("fetch quotes: %w", err)
	}

	if len(quotes) < i.cfg.Coins.Len() {
		i.log.Warn("upstream returned a partial result", slog.Int("returned", len(quotes)), slog.Int("requested", i.cfg.Coins.Len()))
	}

	stored := 0
	// Only coins present in the result are written, in sorted order.
	for _, coin := range slices.Sorted(maps.Keys(quotes)) {
		if !i.cfg.Coins.Contains(coin) {
			i.log.Warn("ignoring quote for unrequested coin", slog.String("coin", string(coin)))
			continue
		}
		q := quotes[coin]

		stat := model.NewPriceStat(coin, q, i.clock.Now())
		if err := i.Store.SaveStat(ctx, stat); err != nil {
			metrics.StatsStored.WithLabelValues(string(coin), "error").Inc()
			i.log.Error("failed to store price stat", slog.String("coin", string(coin)), slog.Any("error", err))
			continue
		}
		metrics.StatsStored.WithLabelValues(string(coin), "ok").Inc()
		stored++

		i.refreshCache(ctx, stat)
		if i.Broadcaster != nil {
			i.Broadcaster.BroadcastStat(stat)
		}
	}

	metrics.IngestCycles.WithLabelValues("ok").Inc()
	i.log.Info("ingestion cycle complete", slog.Int("stored", stored), slog.Int("coins", i.cfg.Coins.Len()))
	return stored, nil
}

// refreshCache overwrites the cached latest record. If that fails the entry
// is dropped so readers fall back to the store instead of a stale value.
func (i *Ingestor) refreshCache(ctx context.Context, stat *model.PriceStat) {
	if i.Cache == nil {
		return
	}
	if err := i.Cache.SaveLatest(ctx, stat); err != nil {
		i.log.Warn("failed to cache latest stat", slog.String("coin", string(stat.Coin)), slog.Any("error", err))
		if err := i.Cache.Invalidate(ctx, stat.Coin); err != nil {
			i.log.Warn("failed to invalidate latest stat", slog.String("coin", string(stat.Coin)), slog.Any("error", err))
		}
	}
}
