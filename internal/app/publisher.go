package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/queue"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/metrics"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/resilience"
)

// ErrNeverConnected is returned by TriggerPublisher.Run when it is stopped
// before the bus was ever reachable.
var ErrNeverConnected = errors.New("message bus never became reachable")

const (
	DefaultPublishInterval   = 15 * time.Minute
	DefaultConnectRetryDelay = 5 * time.Second
)

type PublisherConfig struct {
	Interval          time.Duration
	ConnectRetryDelay time.Duration
}

// TriggerPublisher emits one update trigger per interval, the first one
// immediately after the initial connect.
type TriggerPublisher struct {
	producer queue.TriggerProducer
	cfg      PublisherConfig
	clock    clock.Clock
	log      *slog.Logger
}

func NewTriggerPublisher(producer queue.TriggerProducer, cfg PublisherConfig, clk clock.Clock, log *slog.Logger) *TriggerPublisher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPublishInterval
	}
	if cfg.ConnectRetryDelay <= 0 {
		cfg.ConnectRetryDelay = DefaultConnectRetryDelay
	}
	return &TriggerPublisher{
		producer: producer,
		cfg:      cfg,
		clock:    clk,
		log:      log.With(slog.String("component", "publisher")),
	}
}

var _ Processor = (*TriggerPublisher)(nil)

// Run connects (retrying every ConnectRetryDelay), then publishes until ctx
// is cancelled. It returns nil on cancellation after a successful connect.
func (p *TriggerPublisher) Run(ctx context.Context) error {
	err := resilience.Retry(ctx, p.clock, resilience.Fixed(p.cfg.ConnectRetryDelay), p.connect,
		func(err error, next time.Duration) {
			p.log.Warn("bus unreachable, retrying", slog.Any("error", err), slog.Duration("retry_in", next))
		})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNeverConnected, err)
	}
	p.log.Info("scheduler started", slog.Duration("interval", p.cfg.Interval))

	for {
		// The next tick is scheduled before publishing so a slow publish
		// does not shift the cadence.
		timer := p.clock.Timer(p.cfg.Interval)
		p.tick(ctx)

		select {
		case <-ctx.Done():
			timer.Stop()
			p.log.Info("scheduler stopped")
			return nil
		case <-timer.C:
		}
	}
}

// tick publishes one trigger. A disconnected producer gets one reconnect
// attempt; if that fails the tick is skipped.
func (p *TriggerPublisher) tick(ctx context.Context) {
	if !p.producer.IsConnected() {
		if err := p.connect(ctx); err != nil {
			metrics.TriggersPublished.WithLabelValues("skipped").Inc()
			p.log.Warn("skipping tick, bus still unreachable", slog.Any("error", err))
			return
		}
		p.log.Info("reconnected to bus")
	}

	trigger := model.NewUpdateTrigger(p.clock.Now())
	if err := p.producer.PublishTrigger(ctx, trigger); err != nil {
		metrics.TriggersPublished.WithLabelValues("error").Inc()
		p.log.Error("failed to publish trigger", slog.Any("error", err))
		return
	}
	metrics.TriggersPublished.WithLabelValues("ok").Inc()
	p.log.Info("published update trigger", slog.Time("at", trigger.Timestamp))
}

func (p *TriggerPublisher) connect(ctx context.Context) error {
	if err := p.producer.Connect(ctx); err != nil {
		metrics.BusConnects.WithLabelValues("producer", "error").Inc()
		return err
	}
	metrics.BusConnects.WithLabelValues("producer", "ok").Inc()
	return nil
}
