package notification

import (
	"context"
	"fmt"
	"log"

	"stock-scannerv1/internal/model"
)

// FanOut delivers each intent to multiple backends. Delivery is confirmed
// when at least one backend accepts it; the error is returned only when
// every backend fails, so a flaky secondary channel cannot re-trigger alerts
// that the primary already delivered.
type FanOut struct {
	backends []model.Notifier
}

// NewFanOut creates a fan-out notifier over the given backends.
func NewFanOut(backends ...model.Notifier) *FanOut {
	return &FanOut{backends: backends}
}

func (f *FanOut) Notify(ctx context.Context, intent model.NotificationIntent) error {
	if len(f.backends) == 0 {
		return fmt.Errorf("fanout: no backends configured: %w", model.ErrDeliveryFailed)
	}

	delivered := 0
	var lastErr error
	for _, b := range f.backends {
		if err := b.Notify(ctx, intent); err != nil {
			log.Printf("[fanout] backend %T failed for %s: %v", b, intent.Symbol, err)
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return lastErr
	}
	return nil
}
