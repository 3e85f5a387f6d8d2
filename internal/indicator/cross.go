package indicator

import "stock-scannerv1/internal/model"

// Cross detects a MACD/signal cross between the last two defined indices of
// the frame. Returns DirectionNone when no sign transition occurred or when
// fewer than two defined indices exist.
func (f *Frame) Cross() model.Direction {
	idx := f.Len() - 1
	prev := idx - 1
	if !f.Defined(prev) {
		return model.DirectionNone
	}

	switch {
	case f.MACD[prev] < f.Signal[prev] && f.MACD[idx] > f.Signal[idx]:
		return model.DirectionBullish
	case f.MACD[prev] > f.Signal[prev] && f.MACD[idx] < f.Signal[idx]:
		return model.DirectionBearish
	default:
		return model.DirectionNone
	}
}
