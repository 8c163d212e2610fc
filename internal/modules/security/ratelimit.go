package security

import (
	"fmt"
	"time"
)

// rateWindow is one enforced timeframe with its own cap. All timeframes
// share a single underlying event list; only the cap comparison differs,
// so callers must not assume independent buckets.
type rateWindow struct {
	span time.Duration
	cap  int
}

var defaultWindows = []rateWindow{
	{span: time.Second, cap: 2},
	{span: time.Minute, cap: 20},
	{span: time.Hour, cap: 180},
}

// RateLimiter enforces sliding-window caps per call. Not safe for
// concurrent use; callers serialize access per identity.
type RateLimiter struct {
	windows []rateWindow
	events  map[string]time.Time
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: defaultWindows,
		events:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// Check verifies the identifier against every timeframe in order. Each
// timeframe prunes the shared event list before counting; on refusal the
// returned wait is the remainder of that timeframe measured from the
// oldest surviving event. When all timeframes pass, the call is recorded.
func (r *RateLimiter) Check(identifier string) (bool, time.Duration) {
	now := r.now()

	for _, window := range r.windows {
		r.prune(now, window.span)

		if len(r.events) >= window.cap {
			oldest := now
			for _, ts := range r.events {
				if ts.Before(oldest) {
					oldest = ts
				}
			}
			return false, window.span - now.Sub(oldest)
		}
	}

	key := fmt.Sprintf("%s_%d", identifier, now.UnixNano())
	r.events[key] = now
	return true, 0
}

func (r *RateLimiter) prune(now time.Time, span time.Duration) {
	for key, ts := range r.events {
		if now.Sub(ts) >= span {
			delete(r.events, key)
		}
	}
}
