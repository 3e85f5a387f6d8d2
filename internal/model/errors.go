package model

import "errors"

// Error kinds surfaced by the core. All are contained at per-symbol
// granularity within a scan pass; none is fatal to the process.
var (
	// ErrInsufficientHistory: too few bars for the configured indicator
	// periods. Skip the symbol this pass.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrDataUnavailable: the source returned no usable data. Skip the
	// symbol; it is retried on the next scan.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrThrottled: the source signaled rate limiting. Triggers the fetch
	// gate's backoff adjustment, then retried within the attempt budget.
	ErrThrottled = errors.New("throttled by data source")

	// ErrNotFound: the symbol is unknown to the data source.
	ErrNotFound = errors.New("symbol not found")

	// ErrDeliveryFailed: the notifier rejected the message. Alert state is
	// NOT recorded, so the symbol stays eligible next pass.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)
