package fetchgate

import (
	"context"
	"sync"
	"time"
)

// defaultPollInterval is the suspension granularity while waiting for refill.
const defaultPollInterval = 200 * time.Millisecond

// TokenBucket guarantees a long-run average of at most capacity requests per
// 60-second window. Tokens refill lazily on each Acquire, proportional to
// elapsed time, capped at capacity — no background goroutine or real-time
// clock required.
type TokenBucket struct {
	mu           sync.Mutex
	capacity     float64
	refillPerSec float64
	tokens       float64
	lastRefill   time.Time
	pollInterval time.Duration

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewTokenBucket creates a bucket allowing capacity requests per minute.
// The bucket starts full.
func NewTokenBucket(capacity int) *TokenBucket {
	tb := &TokenBucket{
		capacity:     float64(capacity),
		refillPerSec: float64(capacity) / 60.0,
		tokens:       float64(capacity),
		pollInterval: defaultPollInterval,
		now:          time.Now,
		sleep:        sleepCtx,
	}
	tb.lastRefill = tb.now()
	return tb
}

// Acquire debits one token, suspending in pollInterval steps until one is
// available.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		tb.mu.Unlock()

		if err := tb.sleep(ctx, tb.pollInterval); err != nil {
			return err
		}
	}
}

// ReportThrottled is a no-op: the bucket does not adapt to remote throttling.
func (tb *TokenBucket) ReportThrottled() {}

// Reset is a no-op: the bucket has no adaptive state.
func (tb *TokenBucket) Reset() {}

// refill adds tokens proportional to elapsed time. Caller holds tb.mu.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillPerSec
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
