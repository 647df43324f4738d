package retry

import (
	"context"
	"time"
)

// Config bounds a retried operation: MaxRetries extra attempts after the
// first, with a delay doubling from InitialDelay up to MaxDelay.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig is used for sink writes.
var DefaultConfig = Config{
	MaxRetries:   3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     2 * time.Second,
}

// Backoff yields exponentially growing delays capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	cur time.Duration
}

func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if max < initial {
		max = initial
	}
	return &Backoff{Initial: initial, Max: max}
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Initial
	}
	d := b.cur
	b.cur = minDur(b.cur*2, b.Max)
	return d
}

func (b *Backoff) Reset() { b.cur = 0 }

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs op until it succeeds, the attempts are exhausted or ctx is done.
// It returns the number of attempts made and the last error.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) (int, error) {
	b := NewBackoff(cfg.InitialDelay, cfg.MaxDelay)
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := Sleep(ctx, b.Next()); err != nil {
				return attempt, err
			}
		}
		if lastErr = op(ctx); lastErr == nil {
			return attempt + 1, nil
		}
		if ctx.Err() != nil {
			return attempt + 1, ctx.Err()
		}
	}
	return cfg.MaxRetries + 1, lastErr
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
