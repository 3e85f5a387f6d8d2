package fetchgate

import (
	"context"
	"testing"
	"time"
)

// fakeTime drives gate clocks deterministically: sleep advances the clock
// instead of blocking, and every sleep is recorded.
type fakeTime struct {
	cur   time.Time
	slept []time.Duration
}

func newFakeTime() *fakeTime {
	return &fakeTime{cur: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) now() time.Time { return f.cur }

func (f *fakeTime) sleep(_ context.Context, d time.Duration) error {
	f.cur = f.cur.Add(d)
	f.slept = append(f.slept, d)
	return nil
}

func (f *fakeTime) totalSlept() time.Duration {
	var total time.Duration
	for _, d := range f.slept {
		total += d
	}
	return total
}

// ────────────────────────────────────────────────────────────
// Token bucket
// ────────────────────────────────────────────────────────────

func TestTokenBucket_CapacityThenSuspend(t *testing.T) {
	ft := newFakeTime()
	tb := NewTokenBucket(3)
	tb.now = ft.now
	tb.sleep = ft.sleep
	tb.lastRefill = ft.cur

	ctx := context.Background()

	// First `capacity` acquisitions pass without sleeping.
	for i := 0; i < 3; i++ {
		if err := tb.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if len(ft.slept) != 0 {
		t.Fatalf("slept %v during the first capacity acquisitions", ft.slept)
	}

	// The (capacity+1)th suspends until one token refills: at 3 tokens per
	// 60s that is 20s, reached in 200ms polling steps.
	if err := tb.Acquire(ctx); err != nil {
		t.Fatalf("acquire over capacity: %v", err)
	}
	if got := ft.totalSlept(); got < 20*time.Second {
		t.Errorf("slept %v, want >= 20s for one token refill", got)
	}
	for _, d := range ft.slept {
		if d != 200*time.Millisecond {
			t.Fatalf("poll step %v, want 200ms", d)
		}
	}
}

func TestTokenBucket_RefillIsCapped(t *testing.T) {
	ft := newFakeTime()
	tb := NewTokenBucket(2)
	tb.now = ft.now
	tb.sleep = ft.sleep
	tb.lastRefill = ft.cur

	// A long idle period must not accumulate more than capacity tokens.
	ft.cur = ft.cur.Add(time.Hour)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := tb.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if len(ft.slept) != 0 {
		t.Fatal("capacity tokens not immediately available after idle")
	}

	// Third must wait — proof the bucket was capped at 2.
	if err := tb.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if len(ft.slept) == 0 {
		t.Error("third acquisition did not suspend; refill exceeded capacity")
	}
}

func TestTokenBucket_CancelledContext(t *testing.T) {
	ft := newFakeTime()
	tb := NewTokenBucket(1)
	tb.now = ft.now
	tb.lastRefill = ft.cur
	// Real sleep replaced with one that observes cancellation.
	tb.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	if err := tb.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := tb.Acquire(ctx); err == nil {
		t.Fatal("expected context error on exhausted bucket with cancelled ctx")
	}
}

// ────────────────────────────────────────────────────────────
// Backoff
// ────────────────────────────────────────────────────────────

func backoffUnderTest(ft *fakeTime, cfg BackoffConfig) *Backoff {
	b := NewBackoff(cfg)
	b.now = ft.now
	b.sleep = ft.sleep
	return b
}

func TestBackoff_MinInterRequestDelay(t *testing.T) {
	ft := newFakeTime()
	b := backoffUnderTest(ft, BackoffConfig{MinDelay: 2 * time.Second, InitialBackoff: 5 * time.Second, Factor: 1.5})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if len(ft.slept) != 0 {
		t.Fatalf("first acquire slept %v", ft.slept)
	}

	if err := b.Acquire(ctx); err != nil {
		t.Fatal(err)
	}
	if got := ft.totalSlept(); got != 2*time.Second {
		t.Errorf("second acquire slept %v, want the 2s min delay", got)
	}
}

func TestBackoff_GrowsOnRepeatedThrottles(t *testing.T) {
	ft := newFakeTime()
	b := backoffUnderTest(ft, BackoffConfig{
		MinDelay:       time.Second,
		InitialBackoff: 4 * time.Second,
		MaxBackoff:     10 * time.Second,
		Factor:         1.5,
	})
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	// Throttle → wait 4s; next throttle → 6s; then 9s; then capped at 10s.
	wantWaits := []time.Duration{4 * time.Second, 6 * time.Second, 9 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, want := range wantWaits {
		b.ReportThrottled()
		before := len(ft.slept)
		if err := b.Acquire(ctx); err != nil {
			t.Fatal(err)
		}
		var slept time.Duration
		for _, d := range ft.slept[before:] {
			slept += d
		}
		if slept != want {
			t.Errorf("throttle %d: waited %v, want %v", i, slept, want)
		}
	}
}

func TestBackoff_NoAutoResetWithoutReset(t *testing.T) {
	ft := newFakeTime()
	b := backoffUnderTest(ft, BackoffConfig{InitialBackoff: 4 * time.Second, MaxBackoff: time.Minute, Factor: 2})
	ctx := context.Background()

	b.Acquire(ctx)
	b.ReportThrottled()
	b.Acquire(ctx) // waited 4s, grew to 8s

	// Clean acquisitions — backoff must remain grown.
	for i := 0; i < 5; i++ {
		b.Acquire(ctx)
	}
	if got := b.Delay(); got != 8*time.Second {
		t.Errorf("Delay=%v after clean cycles, want 8s (no auto-reset)", got)
	}

	b.Reset()
	if got := b.Delay(); got != 4*time.Second {
		t.Errorf("Delay=%v after Reset, want initial 4s", got)
	}
}

func TestBackoff_OptionalDecayPolicy(t *testing.T) {
	ft := newFakeTime()
	b := backoffUnderTest(ft, BackoffConfig{
		InitialBackoff: 4 * time.Second,
		MaxBackoff:     time.Minute,
		Factor:         2,
		DecayAfter:     3,
	})
	ctx := context.Background()

	b.Acquire(ctx)
	b.ReportThrottled()
	b.Acquire(ctx) // grew to 8s

	for i := 0; i < 3; i++ {
		b.Acquire(ctx)
	}
	if got := b.Delay(); got != 4*time.Second {
		t.Errorf("Delay=%v after decay window, want initial 4s", got)
	}
}
