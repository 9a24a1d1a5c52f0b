// Package resilience retries bus operations until they succeed or the
// caller gives up.
package resilience

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
)

// Policy describes the delay between attempts. A Multiplier of 1 or less
// gives a fixed delay of Initial.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Fixed waits d between every attempt.
func Fixed(d time.Duration) Policy {
	return Policy{Initial: d, Max: d, Multiplier: 1}
}

// Exponential doubles the delay from initial up to max.
func Exponential(initial, max time.Duration) Policy {
	return Policy{Initial: initial, Max: max, Multiplier: 2}
}

func (p Policy) backOff(clk clock.Clock) backoff.BackOff {
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.Initial)
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.Initial),
		backoff.WithMaxInterval(p.Max),
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
		backoff.WithClockProvider(clk),
	)
}

// Retry calls op until it returns nil or ctx is done. There is no attempt
// limit. notify, when non-nil, is called after each failure with the delay
// before the next attempt.
func Retry(ctx context.Context, clk clock.Clock, p Policy, op func(ctx context.Context) error, notify func(err error, next time.Duration)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := backoff.WithContext(p.backOff(clk), ctx)
	return backoff.RetryNotifyWithTimer(func() error {
		return op(ctx)
	}, b, notify, &clockTimer{clk: clk})
}

// clockTimer drives backoff waits from clk so tests can advance time.
type clockTimer struct {
	clk   clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clk.Timer(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
