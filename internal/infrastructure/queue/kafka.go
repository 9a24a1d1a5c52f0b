package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/app/dto"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/metrics"
)

// DefaultMaxConsecutiveErrors is how many client errors in a row, with no
// message fetched in between, end a subscription.
const DefaultMaxConsecutiveErrors = 3

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	DialTimeout   time.Duration

	// JoinGroupBackoff is the pause between failed consumer group joins.
	// Zero uses the kafka-go default.
	JoinGroupBackoff time.Duration
	// MaxConsecutiveErrors defaults to DefaultMaxConsecutiveErrors.
	MaxConsecutiveErrors int
}

func (c KafkaConfig) maxConsecutiveErrors() int {
	if c.MaxConsecutiveErrors <= 0 {
		return DefaultMaxConsecutiveErrors
	}
	return c.MaxConsecutiveErrors
}

// clientLoggers bridges kafka-go's printf loggers to slog. Every client
// error is also counted against role.
func clientLoggers(log *slog.Logger, role string, onError func(msg string)) (kafka.Logger, kafka.Logger) {
	debug := kafka.LoggerFunc(func(msg string, args ...interface{}) {
		if log.Enabled(context.Background(), slog.LevelDebug) {
			log.Debug(fmt.Sprintf(msg, args...))
		}
	})
	errorLog := kafka.LoggerFunc(func(msg string, args ...interface{}) {
		text := fmt.Sprintf(msg, args...)
		log.Error("kafka client error", slog.String("error", text))
		metrics.BusConnects.WithLabelValues(role, "error").Inc()
		if onError != nil {
			onError(text)
		}
	})
	return debug, errorLog
}

func (c KafkaConfig) dialer() *kafka.Dialer {
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafka.Dialer{Timeout: timeout, DualStack: true}
}

// dialAny returns a connection to the first reachable broker.
func (c KafkaConfig) dialAny(ctx context.Context) (*kafka.Conn, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	var errs []error
	for _, broker := range c.Brokers {
		conn, err := c.dialer().DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", broker, err))
	}
	return nil, errors.Join(errs...)
}

// ensureTopic creates the trigger topic through the controller. It is a
// no-op when the topic already exists.
func (c KafkaConfig) ensureTopic(ctx context.Context) error {
	conn, err := c.dialAny(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("lookup controller: %w", err)
	}
	ctrlAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrlConn, err := c.dialer().DialContext(ctx, "tcp", ctrlAddr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", ctrlAddr, err)
	}
	defer ctrlConn.Close()

	return ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             c.Topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}

// KafkaTriggerProducer implements TriggerProducer using Kafka
type KafkaTriggerProducer struct {
	cfg       KafkaConfig
	log       *slog.Logger
	mu        sync.Mutex
	writer    *kafka.Writer
	connected bool
}

func NewKafkaTriggerProducer(cfg KafkaConfig, log *slog.Logger) *KafkaTriggerProducer {
	return &KafkaTriggerProducer{
		cfg: cfg,
		log: log.With(slog.String("component", "kafka_producer"), slog.String("topic", cfg.Topic)),
	}
}

var _ TriggerProducer = (*KafkaTriggerProducer)(nil)

// Connect verifies a broker is reachable and the topic exists, then opens
// the writer. Calling it while connected re-checks the broker.
func (p *KafkaTriggerProducer) Connect(ctx context.Context) error {
	if err := p.cfg.ensureTopic(ctx); err != nil {
		p.setConnected(false)
		return fmt.Errorf("%w: %w", model.ErrBusUnavailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		debugLog, errorLog := clientLoggers(p.log, "producer", nil)
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(p.cfg.Brokers...),
			Topic:        p.cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: p.cfg.dialer().Timeout,
			Logger:       debugLog,
			ErrorLogger:  errorLog,
		}
	}
	p.connected = true
	p.log.Info("connected to kafka", slog.Any("brokers", p.cfg.Brokers))
	return nil
}

func (p *KafkaTriggerProducer) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *KafkaTriggerProducer) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// PublishTrigger sends one trigger. A failed write marks the producer
// disconnected so the next tick reconnects first.
func (p *KafkaTriggerProducer) PublishTrigger(ctx context.Context, trigger *model.UpdateTrigger) error {
	p.mu.Lock()
	writer, connected := p.writer, p.connected
	p.mu.Unlock()
	if !connected || writer == nil {
		return fmt.Errorf("%w: not connected", model.ErrBusUnavailable)
	}

	data, err := json.Marshal(dto.TriggerFromModel(trigger))
	if err != nil {
		return err
	}

	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(uuid.NewString()),
		Value: data,
		Time:  trigger.Timestamp,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		p.setConnected(false)
		return fmt.Errorf("%w: publish: %w", model.ErrBusUnavailable, err)
	}
	return nil
}

// Close closes the producer
func (p *KafkaTriggerProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

// KafkaTriggerConsumer implements TriggerConsumer using a Kafka consumer group.
type KafkaTriggerConsumer struct {
	cfg    KafkaConfig
	log    *slog.Logger
	mu     sync.Mutex
	active map[*kafkaSubscription]struct{}
	closed bool
}

func NewKafkaTriggerConsumer(cfg KafkaConfig, log *slog.Logger) *KafkaTriggerConsumer {
	return &KafkaTriggerConsumer{
		cfg:    cfg,
		log:    log.With(slog.String("component", "kafka_consumer"), slog.String("topic", cfg.Topic)),
		active: make(map[*kafkaSubscription]struct{}),
	}
}

var _ TriggerConsumer = (*KafkaTriggerConsumer)(nil)

// Subscribe probes a broker so an unreachable bus fails fast, then joins the
// consumer group. Offsets are committed only through Delivery.Ack.
func (c *KafkaTriggerConsumer) Subscribe(ctx context.Context) (Subscription, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("%w: consumer closed", model.ErrBusUnavailable)
	}

	conn, err := c.cfg.dialAny(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrBusUnavailable, err)
	}
	_ = conn.Close()

	sub := c.newSubscription()
	c.mu.Lock()
	c.active[sub] = struct{}{}
	c.mu.Unlock()

	c.log.Info("subscribed to trigger topic", slog.String("group", c.cfg.ConsumerGroup))
	return sub, nil
}

func (c *KafkaTriggerConsumer) newSubscription() *kafkaSubscription {
	sub := &kafkaSubscription{
		owner:     c,
		maxErrors: int32(c.cfg.maxConsecutiveErrors()),
		lost:      make(chan struct{}),
	}
	debugLog, errorLog := clientLoggers(c.log, "consumer", sub.recordError)
	sub.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:          c.cfg.Brokers,
		Topic:            c.cfg.Topic,
		GroupID:          c.cfg.ConsumerGroup,
		Dialer:           c.cfg.dialer(),
		MinBytes:         1,
		MaxBytes:         1e6,
		MaxWait:          time.Second,
		CommitInterval:   0,                // commit synchronously on Ack
		StartOffset:      kafka.LastOffset, // no backfill of triggers published before the group existed
		JoinGroupBackoff: c.cfg.JoinGroupBackoff,
		Logger:           debugLog,
		ErrorLogger:      errorLog,
	})
	return sub
}

func (c *KafkaTriggerConsumer) release(sub *kafkaSubscription) {
	c.mu.Lock()
	delete(c.active, sub)
	c.mu.Unlock()
}

// Close closes every open subscription; further Subscribe calls fail.
func (c *KafkaTriggerConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	subs := make([]*kafkaSubscription, 0, len(c.active))
	for sub := range c.active {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type kafkaSubscription struct {
	reader    *kafka.Reader
	owner     *KafkaTriggerConsumer
	closeOnce sync.Once
	closeErr  error

	// Client errors since the last fetched message. Reaching maxErrors
	// closes lost.
	maxErrors int32
	errCount  atomic.Int32
	lastErr   atomic.Value // string
	lostOnce  sync.Once
	lost      chan struct{}
}

func (s *kafkaSubscription) recordError(msg string) {
	s.lastErr.Store(msg)
	if s.errCount.Add(1) >= s.maxErrors {
		s.lostOnce.Do(func() { close(s.lost) })
	}
}

func (s *kafkaSubscription) lostErr() error {
	msg, _ := s.lastErr.Load().(string)
	return fmt.Errorf("%w: %d consecutive client errors, last: %s", model.ErrBusUnavailable, s.errCount.Load(), msg)
}

func (s *kafkaSubscription) Next(ctx context.Context) (*Delivery, error) {
	select {
	case <-s.lost:
		return nil, s.lostErr()
	default:
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.lost:
			cancel()
		case <-fetchCtx.Done():
		}
	}()

	for {
		msg, err := s.reader.FetchMessage(fetchCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			select {
			case <-s.lost:
				return nil, s.lostErr()
			default:
			}
			return nil, fmt.Errorf("%w: fetch: %w", model.ErrBusUnavailable, err)
		}
		s.errCount.Store(0)

		var payload dto.TriggerDTO
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			s.owner.log.Warn("skipping undecodable trigger",
				slog.Int64("offset", msg.Offset),
				slog.Int("partition", msg.Partition),
				slog.Any("error", err))
			// Commit bad messages to avoid getting stuck
			if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				s.owner.log.Warn("failed to commit undecodable trigger", slog.Any("error", err))
			}
			continue
		}

		return NewDelivery(payload.ToModel(), func(ctx context.Context) error {
			return s.reader.CommitMessages(ctx, msg)
		}), nil
	}
}

func (s *kafkaSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.owner.release(s)
		s.closeErr = s.reader.Close()
	})
	return s.closeErr
}
