package model

import (
	"context"
	"time"
)

// ── External Collaborator Ports ──
// These interfaces decouple the decision pipeline from concrete I/O
// (market data transport, alert delivery, watchlist persistence). Each
// implementation satisfies one of these ports.

// DataSource fetches market data for a symbol.
type DataSource interface {
	// FetchHistory returns an ordered PriceHistory covering [from, to] at the
	// given bar interval. Errors wrap ErrThrottled / ErrNotFound /
	// ErrDataUnavailable for classification at the orchestrator boundary.
	FetchHistory(ctx context.Context, sym Symbol, interval time.Duration, from, to time.Time) (*PriceHistory, error)

	// FetchSnapshot returns the latest Sample for a symbol.
	FetchSnapshot(ctx context.Context, sym Symbol) (*Sample, error)
}

// Notifier delivers a notification intent to an external channel.
// A non-nil error means the intent was not delivered; the orchestrator must
// not record the alert in that case.
type Notifier interface {
	Notify(ctx context.Context, intent NotificationIntent) error
}

// WatchlistStore persists the ordered set of watched symbols.
// Symbol format validation happens in the calling layer, not here.
type WatchlistStore interface {
	Load() ([]Symbol, error)
	Save(symbols []Symbol) error
}
