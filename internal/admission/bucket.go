package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter *rate.Limiter
	last    atomic.Int64
}

// TokenBucketLimiter smooths read traffic: a burst up front, then a steady
// refill. Buckets idle for longer than idleTTL are swept.
type TokenBucketLimiter struct {
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	buckets sync.Map
}

var _ Limiter = (*TokenBucketLimiter)(nil)

func NewTokenBucketLimiter(rps float64, burst int, idleTTL time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{rps: rate.Limit(rps), burst: burst, idleTTL: idleTTL, now: time.Now}
}

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	v, ok := l.buckets.Load(key)
	if !ok {
		v, _ = l.buckets.LoadOrStore(key, &bucket{limiter: rate.NewLimiter(l.rps, l.burst)})
	}
	b := v.(*bucket)
	b.last.Store(now.UnixNano())

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	reset := now
	if missing := float64(l.burst) - tokens; missing > 0 && l.rps > 0 {
		reset = now.Add(time.Duration(missing / float64(l.rps) * float64(time.Second)))
	}
	return Decision{
		Allowed:   allowed,
		Limit:     l.burst,
		Remaining: max(0, int(tokens)),
		ResetAt:   reset,
	}, nil
}

func (l *TokenBucketLimiter) Sweep(now time.Time) int {
	removed := 0
	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.buckets.Range(func(key, val any) bool {
		if val.(*bucket).last.Load() < cutoff {
			l.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (l *TokenBucketLimiter) Run(ctx context.Context, interval time.Duration) error {
	return sweepLoop(ctx, interval, func() { l.Sweep(l.now()) })
}
