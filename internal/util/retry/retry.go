// Package retry runs an operation a bounded number of times with linearly increasing,
// capped backoff between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxRetries int           // 0 means a single attempt
	BaseDelay  time.Duration // delay after the first failed attempt
	MaxDelay   time.Duration // 0 disables the cap

	// Sleep waits for d or until ctx is done. Defaults to the backoff timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	return max(p.MaxRetries, 0) + 1
}

// Delay returns the wait before the next attempt after `failed` failed attempts,
// i.e. failed*BaseDelay capped at MaxDelay.
func (p Policy) Delay(failed int) time.Duration {
	if failed <= 0 || p.BaseDelay <= 0 {
		return 0
	}

	d := time.Duration(failed) * p.BaseDelay
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}

	return d
}

// BackOff returns the delay schedule of p, bounded by MaxRetries and ctx.
//
//nolint:ireturn
func (p Policy) BackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &linearBackOff{policy: p}
	b = backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0))) //nolint:gosec // non-negative

	return backoff.WithContext(b, ctx)
}

// Do calls fn until it succeeds, the attempts are exhausted or ctx is done.
// fn receives the 1-based attempt number. Do returns the number of attempts made
// and the last error of fn, or the context error if fn never ran.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var timer backoff.Timer
	if p.Sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: p.Sleep}
	}

	attempts := 0
	var lastErr error
	err := backoff.RetryNotifyWithTimer(func() error {
		attempts++
		lastErr = fn(ctx, attempts)
		return lastErr
	}, p.BackOff(ctx), nil, timer)

	if err != nil && lastErr != nil {
		return attempts, lastErr
	}

	return attempts, err
}

type linearBackOff struct {
	policy Policy
	failed int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.failed++
	return b.policy.Delay(b.failed)
}

func (b *linearBackOff) Reset() {
	b.failed = 0
}

// sleepTimer adapts Policy.Sleep to backoff.Timer.
type sleepTimer struct {
	ctx   context.Context //nolint:containedctx
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	c := make(chan time.Time, 1)
	t.c = c

	go func() {
		if t.sleep(t.ctx, d) == nil {
			c <- time.Now()
		}
	}()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}
