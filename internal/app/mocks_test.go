package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
	"github.com/Namanahuja82/koinx-backend-assignment/internal/infrastructure/queue"
)

var errBusDown = errors.Join(model.ErrBusUnavailable, errors.New("connection refused"))

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockProducer implements queue.TriggerProducer for testing
type MockProducer struct {
	mu              sync.Mutex
	connectFailures int     // number of upcoming Connect calls that fail
	publishErrs     []error // consumed one per PublishTrigger call
	connected       bool
	connects        int
	publishCalls    int
	published       chan *model.UpdateTrigger
}

func NewMockProducer() *MockProducer {
	return &MockProducer{published: make(chan *model.UpdateTrigger, 16)}
}

func (p *MockProducer) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connects++
	if p.connectFailures > 0 {
		p.connectFailures--
		return errBusDown
	}
	p.connected = true
	return nil
}

func (p *MockProducer) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *MockProducer) PublishTrigger(ctx context.Context, trigger *model.UpdateTrigger) error {
	p.mu.Lock()
	p.publishCalls++
	var err error
	if len(p.publishErrs) > 0 {
		err, p.publishErrs = p.publishErrs[0], p.publishErrs[1:]
	}
	if err != nil {
		p.connected = false
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()
	p.published <- trigger
	return nil
}

func (p *MockProducer) Close() error { return nil }

func (p *MockProducer) SetConnectFailures(n int) {
	p.mu.Lock()
	p.connectFailures = n
	p.mu.Unlock()
}

func (p *MockProducer) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}

func (p *MockProducer) PublishCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishCalls
}

// MockConsumer implements queue.TriggerConsumer; every subscription it
// hands out is also sent on Subs.
type MockConsumer struct {
	mu             sync.Mutex
	failSubscribes int
	subscribes     int
	Subs           chan *MockSubscription
}

func NewMockConsumer() *MockConsumer {
	return &MockConsumer{Subs: make(chan *MockSubscription, 8)}
}

func (c *MockConsumer) Subscribe(ctx context.Context) (queue.Subscription, error) {
	c.mu.Lock()
	c.subscribes++
	if c.failSubscribes > 0 {
		c.failSubscribes--
		c.mu.Unlock()
		return nil, errBusDown
	}
	c.mu.Unlock()

	sub := &MockSubscription{
		deliveries: make(chan *model.UpdateTrigger, 8),
		fail:       make(chan error, 1),
		Acks:       make(chan *model.UpdateTrigger, 8),
		closed:     make(chan struct{}),
	}
	c.Subs <- sub
	return sub, nil
}

func (c *MockConsumer) Subscribes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

func (c *MockConsumer) Close() error { return nil }

type MockSubscription struct {
	deliveries chan *model.UpdateTrigger
	fail       chan error
	Acks       chan *model.UpdateTrigger
	closeOnce  sync.Once
	closed     chan struct{}
}

func (s *MockSubscription) Deliver(t *model.UpdateTrigger) { s.deliveries <- t }

// Break makes the next Next call fail as if the connection dropped.
func (s *MockSubscription) Break(err error) { s.fail <- err }

func (s *MockSubscription) Next(ctx context.Context) (*queue.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-s.fail:
		return nil, err
	case t := <-s.deliveries:
		return queue.NewDelivery(t, func(ctx context.Context) error {
			s.Acks <- t
			return nil
		}), nil
	}
}

func (s *MockSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// MockSource implements useCases.PriceSource for testing
type MockSource struct {
	mu     sync.Mutex
	quotes model.Quotes
	err    error
	calls  int
}

func (s *MockSource) FetchQuotes(ctx context.Context, coins model.CoinSet) (model.Quotes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(model.Quotes, len(s.quotes))
	for c, q := range s.quotes {
		out[c] = q
	}
	return out, nil
}

func (s *MockSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// MockCache implements repository.LatestStatCache for testing
type MockCache struct {
	mu          sync.Mutex
	entries     map[model.Coin]*model.PriceStat
	failSave    bool
	invalidated []model.Coin
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[model.Coin]*model.PriceStat)}
}

func (c *MockCache) SaveLatest(ctx context.Context, stat *model.PriceStat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSave {
		return errors.New("cache write failed")
	}
	cp := *stat
	c.entries[stat.Coin] = &cp
	return nil
}

func (c *MockCache) FillLatest(ctx context.Context, stat *model.PriceStat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[stat.Coin]; ok {
		return nil
	}
	cp := *stat
	c.entries[stat.Coin] = &cp
	return nil
}

func (c *MockCache) GetLatest(ctx context.Context, coin model.Coin) (*model.PriceStat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stat, ok := c.entries[coin]
	if !ok {
		return nil, nil
	}
	cp := *stat
	return &cp, nil
}

func (c *MockCache) Invalidate(ctx context.Context, coin model.Coin) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, coin)
	c.invalidated = append(c.invalidated, coin)
	return nil
}

// MockBroadcaster implements the Broadcaster interface for testing
type MockBroadcaster struct {
	broadcasts []*model.PriceStat
	mu         sync.Mutex
}

func (b *MockBroadcaster) BroadcastStat(stat *model.PriceStat) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = append(b.broadcasts, stat)
}

func (b *MockBroadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {}
}

func (b *MockBroadcaster) GetBroadcasts() []*model.PriceStat {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*model.PriceStat, len(b.broadcasts))
	copy(out, b.broadcasts)
	return out
}
