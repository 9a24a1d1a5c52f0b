package queue

import (
	"context"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/domain/model"
)

// TriggerProducer is the scheduler's handle on the bus. It owns the
// connection; callers drive its lifecycle explicitly.
type TriggerProducer interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	PublishTrigger(ctx context.Context, trigger *model.UpdateTrigger) error
	Close() error
}

// TriggerConsumer hands out subscriptions to the trigger topic.
type TriggerConsumer interface {
	Subscribe(ctx context.Context) (Subscription, error)
	Close() error
}

// Subscription is a one-shot stream of deliveries. Once Next returns an
// error other than a context error the subscription is dead and a new one
// must be requested.
type Subscription interface {
	// Next blocks until a delivery arrives or ctx is done.
	Next(ctx context.Context) (*Delivery, error)
	Close() error
}

// Delivery is one received trigger. Ack must be called once the trigger has
// been handled; unacknowledged deliveries may be redelivered.
type Delivery struct {
	Trigger *model.UpdateTrigger
	ack     func(ctx context.Context) error
}

func NewDelivery(trigger *model.UpdateTrigger, ack func(ctx context.Context) error) *Delivery {
	return &Delivery{Trigger: trigger, ack: ack}
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}
