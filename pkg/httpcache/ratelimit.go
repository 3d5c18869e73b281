package httpcache

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum delay between requests to the same host.
// It is safe for concurrent use.
type RateLimiter struct {
	last     map[string]time.Time
	mu       sync.Mutex
	minDelay time.Duration
}

// NewRateLimiter creates a limiter that spaces requests to one host by at least minDelay.
func NewRateLimiter(minDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		minDelay: minDelay,
		last:     make(map[string]time.Time),
	}
}

// Wait blocks until a request to host may be sent, or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, host string) error {
	if host == "" || r.minDelay <= 0 {
		return nil
	}

	r.mu.Lock()
	now := time.Now()
	next := now
	if last, ok := r.last[host]; ok {
		if earliest := last.Add(r.minDelay); earliest.After(now) {
			next = earliest
		}
	}
	// Reserve the slot before sleeping so concurrent callers queue behind it.
	r.last[host] = next
	r.mu.Unlock()

	wait := next.Sub(now)
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
