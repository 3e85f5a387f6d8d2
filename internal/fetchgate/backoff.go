package fetchgate

import (
	"context"
	"log"
	"sync"
	"time"
)

// BackoffConfig configures the backoff-on-throttle gate.
type BackoffConfig struct {
	MinDelay       time.Duration // minimum inter-request delay
	InitialBackoff time.Duration // first post-throttle suspension
	MaxBackoff     time.Duration // growth cap
	Factor         float64       // multiplicative growth, e.g. 1.5

	// DecayAfter resets the backoff after this many consecutive
	// non-throttled acquisitions. 0 disables decay — the external
	// collaborator must call Reset explicitly.
	DecayAfter int
}

// DefaultBackoffConfig matches the provider limits the scanner was tuned for.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MinDelay:       2 * time.Second,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     2 * time.Minute,
		Factor:         1.5,
	}
}

// Backoff enforces a minimum inter-request delay and, after the caller
// reports throttling, suspends for a multiplicatively growing backoff before
// the next request. A successful cycle does not auto-reset the backoff;
// Reset (or the optional DecayAfter policy) does.
type Backoff struct {
	cfg BackoffConfig

	mu            sync.Mutex
	lastRequestAt time.Time
	backoffDelay  time.Duration
	throttled     bool
	successStreak int

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewBackoff creates a backoff gate.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Factor <= 1 {
		cfg.Factor = 1.5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Backoff{
		cfg:          cfg,
		backoffDelay: cfg.InitialBackoff,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Acquire waits out the minimum inter-request delay and, if the previous
// request was throttled, the current backoff delay — then grows the backoff
// for the next throttle.
func (b *Backoff) Acquire(ctx context.Context) error {
	b.mu.Lock()
	now := b.now()

	wait := time.Duration(0)
	if !b.lastRequestAt.IsZero() {
		if since := now.Sub(b.lastRequestAt); since < b.cfg.MinDelay {
			wait = b.cfg.MinDelay - since
		}
	}

	grew := time.Duration(0)
	if b.throttled {
		if b.backoffDelay > wait {
			wait = b.backoffDelay
		}
		// Grow for the next throttle cycle, capped.
		grew = time.Duration(float64(b.backoffDelay) * b.cfg.Factor)
		if grew > b.cfg.MaxBackoff {
			grew = b.cfg.MaxBackoff
		}
		b.backoffDelay = grew
		b.throttled = false
		b.successStreak = 0
	} else {
		b.successStreak++
		if b.cfg.DecayAfter > 0 && b.successStreak >= b.cfg.DecayAfter && b.backoffDelay > b.cfg.InitialBackoff {
			log.Printf("[fetchgate] %d clean acquisitions — decaying backoff to %v",
				b.successStreak, b.cfg.InitialBackoff)
			b.backoffDelay = b.cfg.InitialBackoff
			b.successStreak = 0
		}
	}
	b.mu.Unlock()

	if wait > 0 {
		if err := b.sleep(ctx, wait); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.lastRequestAt = b.now()
	b.mu.Unlock()
	return nil
}

// ReportThrottled marks the last request as rate limited; the next Acquire
// suspends for the current backoff delay.
func (b *Backoff) ReportThrottled() {
	b.mu.Lock()
	b.throttled = true
	b.successStreak = 0
	b.mu.Unlock()
}

// Reset restores the initial backoff delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.backoffDelay = b.cfg.InitialBackoff
	b.throttled = false
	b.successStreak = 0
	b.mu.Unlock()
}

// Delay returns the current backoff delay (for telemetry).
func (b *Backoff) Delay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.backoffDelay
}
