// Package admission gates expensive routes: per-identity request counting
// and a cheap screen for injection-looking input.
package admission

import (
	"context"
	"math"
	"time"
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window resets, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(d.ResetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Key scopes a counter to a caller on a route.
func Key(identity, route string) string {
	return identity + ":" + route
}
