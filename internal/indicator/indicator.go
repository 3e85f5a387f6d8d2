// Package indicator provides the technical-indicator pipeline: streaming
// EMA/SMA primitives, the MACD frame (fast/slow EMA, MACD line, signal line,
// histogram) with explicit defined-index thresholds, cross detection, and
// local-extrema / divergence analysis over a price history.
//
// Frame indices before an indicator's seed threshold are undefined and hold
// math.NaN(), never zero — zero-substitution would corrupt downstream seeds.
package indicator

// Params holds the MACD periods. Zero-value fields fall back to the
// conventional 12/26/9 via Normalize.
type Params struct {
	FastPeriod   int
	SlowPeriod   int
	SignalPeriod int
}

// DefaultParams is the conventional MACD configuration.
var DefaultParams = Params{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}

// Normalize fills unset periods with defaults.
func (p Params) Normalize() Params {
	if p.FastPeriod <= 0 {
		p.FastPeriod = DefaultParams.FastPeriod
	}
	if p.SlowPeriod <= 0 {
		p.SlowPeriod = DefaultParams.SlowPeriod
	}
	if p.SignalPeriod <= 0 {
		p.SignalPeriod = DefaultParams.SignalPeriod
	}
	return p
}

// MinBars returns the minimum history length the frame computation accepts:
// enough to seed both EMAs, seed the signal EMA over defined MACD points,
// and leave two defined indices for cross detection.
func (p Params) MinBars() int {
	return p.SlowPeriod + p.SignalPeriod + 2
}
