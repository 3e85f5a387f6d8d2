package indicator

import "stock-scannerv1/internal/model"

// DefaultLookback is the symmetric window radius for local-extrema detection.
const DefaultLookback = 6

// DivergenceResult carries the per-call divergence verdicts. At most one
// bullish and one bearish pattern is reported per call; both may hold on the
// same history (highs and lows are compared independently).
type DivergenceResult struct {
	Bullish bool
	Bearish bool
}

// Direction reduces the result to a single side for reporting: bullish wins
// over bearish when both hold (the scanner only confirms bullish setups).
func (d DivergenceResult) Direction() model.Direction {
	switch {
	case d.Bullish:
		return model.DirectionBullish
	case d.Bearish:
		return model.DirectionBearish
	default:
		return model.DirectionNone
	}
}

// localHighs returns indices that strictly exceed every value within a
// symmetric window of radius lookback on both sides, excluding themselves.
// Only interior indices (at least lookback from both ends) are eligible.
func localHighs(values []float64, lookback int) []int {
	var out []int
	for i := lookback; i < len(values)-lookback; i++ {
		isHigh := true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if values[j] >= values[i] {
				isHigh = false
				break
			}
		}
		if isHigh {
			out = append(out, i)
		}
	}
	return out
}

// localLows is the symmetric counterpart of localHighs.
func localLows(values []float64, lookback int) []int {
	var out []int
	for i := lookback; i < len(values)-lookback; i++ {
		isLow := true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if values[j] <= values[i] {
				isLow = false
				break
			}
		}
		if isLow {
			out = append(out, i)
		}
	}
	return out
}

// Divergence compares the two most recent local price extrema against the
// MACD values at the same indices.
//
// Bearish: price makes a higher high while MACD makes a lower high.
// Bullish: price makes a lower low while MACD makes a higher low.
//
// Both MACD values must be defined; extrema inside the undefined MACD prefix
// are ignored. This is a best-effort heuristic with no statistical
// confirmation — treat it as a warning flag, not a guaranteed pattern.
func (f *Frame) Divergence(closes []float64, lookback int) DivergenceResult {
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	var res DivergenceResult

	if highs := lastTwoDefined(localHighs(closes, lookback), f.MACDStart); highs != nil {
		i1, i2 := highs[0], highs[1]
		if closes[i2] > closes[i1] && f.MACD[i2] < f.MACD[i1] {
			res.Bearish = true
		}
	}

	if lows := lastTwoDefined(localLows(closes, lookback), f.MACDStart); lows != nil {
		i1, i2 := lows[0], lows[1]
		if closes[i2] < closes[i1] && f.MACD[i2] > f.MACD[i1] {
			res.Bullish = true
		}
	}

	return res
}

// lastTwoDefined returns the last two extrema indices at or after minIdx,
// ordered [older, newer], or nil when fewer than two qualify.
func lastTwoDefined(idxs []int, minIdx int) []int {
	var kept []int
	for _, i := range idxs {
		if i >= minIdx {
			kept = append(kept, i)
		}
	}
	if len(kept) < 2 {
		return nil
	}
	return kept[len(kept)-2:]
}
