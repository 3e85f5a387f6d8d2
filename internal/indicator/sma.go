package indicator

// SMA calculates a Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer for zero-allocation updates.
// The scanner uses it as the trailing volume baseline for relative volume.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

// Update feeds the next value.
func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

// Value returns the current SMA. Undefined (0) before Ready.
func (s *SMA) Value() float64 { return s.current }

// Ready reports whether the window is full.
func (s *SMA) Ready() bool { return s.count >= s.period }

// PartialValue returns the average over however many values have been seen,
// or 0 if none. Used when a trailing baseline is needed before the window
// fills (relative volume on freshly tracked symbols).
func (s *SMA) PartialValue() float64 {
	if s.count == 0 {
		return 0
	}
	if s.count >= s.period {
		return s.current
	}
	return s.sum / float64(s.count)
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}
