package chat

import (
	"context"
	"testing"
	"time"
)

// fakeClock advances only when told to, so refill math is exact.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate float64) (*RateLimiter, *fakeClock, *[]time.Duration) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	var waits []time.Duration
	rl := NewRateLimiter(rate)
	rl.now = clock.now
	rl.lastCheck = clock.t
	rl.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return rl, clock, &waits
}

func TestAcquireImmediateWithFullBucket(t *testing.T) {
	rl, _, waits := newTestLimiter(1.0)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(*waits) != 0 {
		t.Fatalf("unexpected waits: %v", *waits)
	}
}

func TestQuadraticRefillPenalizesBursts(t *testing.T) {
	rl, clock, waits := newTestLimiter(1.0)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	// Half a second later the quadratic refill restores only 0.25 tokens,
	// so the second send must wait (1 - 0.25) / 1.0 = 750ms.
	clock.advance(500 * time.Millisecond)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if len(*waits) != 1 {
		t.Fatalf("waits = %v, want exactly one", *waits)
	}
	got := (*waits)[0]
	if got < 740*time.Millisecond || got > 760*time.Millisecond {
		t.Fatalf("wait = %v, want ~750ms", got)
	}
}

func TestRefillCapsAtOneToken(t *testing.T) {
	rl, clock, waits := newTestLimiter(1.0)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	clock.advance(time.Hour)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after idle: %v", err)
	}
	if len(*waits) != 0 {
		t.Fatalf("idle refill should not wait: %v", *waits)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	rl, clock, _ := newTestLimiter(1.0)
	rl.sleep = sleepCtx
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	clock.advance(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Acquire(ctx); err == nil {
		t.Fatal("expected context error while waiting")
	}
}
