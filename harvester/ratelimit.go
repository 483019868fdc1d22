package harvester

import (
	"context"
	"sync"
	"time"
)

// RateLimiter caps the number of requests issued in any trailing one-second
// window. It is shared by every worker in the pool; all mutation of the
// timestamp window happens under a single mutex.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
}

// NewRateLimiter builds a limiter admitting at most limit requests per
// rolling second.
func NewRateLimiter(limit int) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{
		limit:  limit,
		window: time.Second,
	}
}

// Acquire blocks until issuing a request would not exceed the ceiling, then
// records the request time. Sleeping and re-checking in a loop tolerates
// wake jitter; a canceled context aborts the wait.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rl.mu.Lock()
		now := time.Now()
		rl.prune(now)
		if len(rl.stamps) < rl.limit {
			rl.stamps = append(rl.stamps, now)
			rl.mu.Unlock()
			return nil
		}
		wait := rl.window - now.Sub(rl.stamps[0])
		rl.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// prune drops timestamps that have fallen out of the window. Callers hold mu.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)
	kept := rl.stamps[:0]
	for _, t := range rl.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.stamps = kept
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
