// Package fetchgate paces outbound market-data requests. Two interchangeable
// policies are provided: a token bucket for steady throughput limiting, and a
// backoff gate that adapts to throttling signaled by the remote service.
package fetchgate

import (
	"context"
	"time"
)

// Gate is the pacing contract consumed by the scan orchestrator.
type Gate interface {
	// Acquire blocks until it is safe to issue the next request. It returns
	// a non-nil error only when ctx is cancelled — pacing itself never fails.
	Acquire(ctx context.Context) error

	// ReportThrottled signals that the last request was rate limited by the
	// remote service. No-op for policies that don't adapt.
	ReportThrottled()

	// Reset clears any adaptive state (e.g. after a sustained success
	// window). No-op for policies without adaptive state.
	Reset()
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
