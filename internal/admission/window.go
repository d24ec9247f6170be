package admission

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
	dead    bool
}

// WindowLimiter is a fixed-window counter held in process memory.
type WindowLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	entries sync.Map
}

var _ Limiter = (*WindowLimiter)(nil)

func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{limit: limit, window: window, now: time.Now}
}

func (l *WindowLimiter) Allow(_ context.Context, key string) (Decision, error) {
	for {
		v, _ := l.entries.LoadOrStore(key, &windowEntry{})
		e := v.(*windowEntry)

		e.mu.Lock()
		if e.dead {
			// swept between load and lock
			e.mu.Unlock()
			continue
		}
		now := l.now()
		if e.resetAt.IsZero() || !now.Before(e.resetAt) {
			e.count = 0
			e.resetAt = now.Add(l.window)
		}
		e.count++
		d := Decision{
			Allowed:   e.count <= l.limit,
			Limit:     l.limit,
			Remaining: max(0, l.limit-e.count),
			ResetAt:   e.resetAt,
		}
		e.mu.Unlock()
		return d, nil
	}
}

// Sweep drops every entry whose window has closed and returns how many went.
func (l *WindowLimiter) Sweep(now time.Time) int {
	removed := 0
	l.entries.Range(func(key, val any) bool {
		e := val.(*windowEntry)
		e.mu.Lock()
		if !now.Before(e.resetAt) {
			e.dead = true
			l.entries.Delete(key)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

func (l *WindowLimiter) Len() int {
	n := 0
	l.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Run sweeps on every tick until ctx is done.
func (l *WindowLimiter) Run(ctx context.Context, interval time.Duration) error {
	return sweepLoop(ctx, interval, func() { l.Sweep(l.now()) })
}

func sweepLoop(ctx context.Context, interval time.Duration, sweep func()) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			sweep()
		}
	}
}
