package indicator

import "math"

// EMA calculates an Exponential Moving Average.
// O(1) per update — no window storage needed.
//
// The value at the seed index is the simple average of the first `period`
// inputs; each subsequent value is `price*k + prev*(1-k)` with
// k = 2/(period+1). Seeding from the SMA is load-bearing: an EMA recursed
// from index 0 produces materially different values.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds the next value.
func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for the initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

// Value returns the current EMA. Undefined (0) before Ready.
func (e *EMA) Value() float64 { return e.current }

// Ready reports whether the seed window is complete.
func (e *EMA) Ready() bool { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// emaSeries runs an EMA over values and returns a same-length series where
// indices before period-1 are NaN (undefined).
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	ema := NewEMA(period)
	for i, v := range values {
		ema.Update(v)
		if ema.Ready() {
			out[i] = ema.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
