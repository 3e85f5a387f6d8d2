package indicator

import (
	"fmt"
	"math"

	"stock-scannerv1/internal/model"
)

// Frame holds aligned per-index indicator series over one price history.
// All slices have the same length as the input closes. Indices before an
// indicator's start threshold are NaN:
//
//	FastEMA defined from FastPeriod-1
//	SlowEMA and MACD defined from MACDStart = SlowPeriod-1
//	Signal and Histogram defined from SignalStart = SlowPeriod+SignalPeriod-2
type Frame struct {
	Params Params

	FastEMA   []float64
	SlowEMA   []float64
	MACD      []float64
	Signal    []float64
	Histogram []float64

	MACDStart   int // first index where MACD is defined
	SignalStart int // first index where Signal/Histogram are defined
}

// ComputeFrame derives the full indicator frame from a price history.
// Returns model.ErrInsufficientHistory when fewer than Params.MinBars bars
// are available.
func ComputeFrame(hist *model.PriceHistory, p Params) (*Frame, error) {
	p = p.Normalize()
	closes := hist.Closes()
	if len(closes) < p.MinBars() {
		return nil, fmt.Errorf("%s: %d bars, need %d: %w",
			hist.Symbol, len(closes), p.MinBars(), model.ErrInsufficientHistory)
	}

	f := &Frame{
		Params:      p,
		FastEMA:     emaSeries(closes, p.FastPeriod),
		SlowEMA:     emaSeries(closes, p.SlowPeriod),
		MACDStart:   p.SlowPeriod - 1,
		SignalStart: p.SlowPeriod + p.SignalPeriod - 2,
	}

	// MACD = fast − slow, defined only where both EMAs are.
	f.MACD = make([]float64, len(closes))
	for i := range closes {
		if i < f.MACDStart {
			f.MACD[i] = math.NaN()
			continue
		}
		f.MACD[i] = f.FastEMA[i] - f.SlowEMA[i]
	}

	// Signal = EMA of the MACD line, seeded the same way, over the
	// contiguous defined region only. Feeding the undefined prefix (even as
	// zeros) would corrupt the seed average.
	f.Signal = make([]float64, len(closes))
	sigEMA := NewEMA(p.SignalPeriod)
	for i := range closes {
		if i < f.MACDStart {
			f.Signal[i] = math.NaN()
			continue
		}
		sigEMA.Update(f.MACD[i])
		if sigEMA.Ready() {
			f.Signal[i] = sigEMA.Value()
		} else {
			f.Signal[i] = math.NaN()
		}
	}

	// Histogram = MACD − Signal, defined only where both are.
	f.Histogram = make([]float64, len(closes))
	for i := range closes {
		if i < f.SignalStart {
			f.Histogram[i] = math.NaN()
			continue
		}
		f.Histogram[i] = f.MACD[i] - f.Signal[i]
	}

	return f, nil
}

// Len returns the number of indices in the frame.
func (f *Frame) Len() int { return len(f.MACD) }

// Defined reports whether both MACD and Signal are defined at index i.
func (f *Frame) Defined(i int) bool {
	return i >= f.SignalStart && i < f.Len()
}

// HistogramRising reports whether the histogram strictly increased between
// the last two defined indices. Part of the cross confirmation policy.
func (f *Frame) HistogramRising() bool {
	last := f.Len() - 1
	if !f.Defined(last - 1) {
		return false
	}
	return f.Histogram[last] > f.Histogram[last-1]
}
