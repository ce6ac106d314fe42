package chat

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a single-token bucket governing outbound sends. The refill
// is deliberately quadratic in elapsed time: short gaps between sends refill
// almost nothing, so bursts are throttled much harder than a linear bucket
// would, while a few idle seconds restore the full token.
type RateLimiter struct {
	mu        sync.Mutex
	rate      float64 // tokens per second at unit elapsed time
	tokens    float64
	maxTokens float64
	lastCheck time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter builds a limiter with the given refill rate.
func NewRateLimiter(rate float64) *RateLimiter {
	return &RateLimiter{
		rate:      rate,
		tokens:    1.0,
		maxTokens: 1.0,
		lastCheck: time.Now(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire blocks until a token is available, then consumes it.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	rl.mu.Lock()
	now := rl.now()
	elapsed := now.Sub(rl.lastCheck).Seconds()
	rl.lastCheck = now

	rl.tokens = min(rl.maxTokens, rl.tokens+elapsed*elapsed*rl.rate)
	var wait time.Duration
	if rl.tokens < 1.0 {
		wait = time.Duration((1.0 - rl.tokens) / rl.rate * float64(time.Second))
	}
	rl.tokens -= 1.0
	rl.mu.Unlock()

	if wait > 0 {
		return rl.sleep(ctx, wait)
	}
	return nil
}
