// Package scanner drives the scan loop: it walks the watchlist in paced
// batches, pulls market data through the fetch gate, hands it to the
// configured strategy, and turns allowed signals into notification intents.
package scanner

import (
	"fmt"
	"log"

	"stock-scannerv1/internal/indicator"
	"stock-scannerv1/internal/model"
	"stock-scannerv1/internal/momentum"
)

// Input carries the market data for one symbol evaluation. Exactly one of
// History or Sample is set, depending on the strategy's mode.
type Input struct {
	Symbol  model.Symbol
	History *model.PriceHistory
	Sample  *model.Sample
}

// Strategy evaluates one symbol per scan pass. A nil signal with nil
// error means "nothing to report".
type Strategy interface {
	Name() string
	// NeedsHistory reports whether Evaluate consumes History (true) or
	// Sample (false).
	NeedsHistory() bool
	Evaluate(in Input) (*model.Signal, error)
}

// CrossStrategy raises a signal when the MACD line crosses its signal
// line on the most recent bar. Only confirmed bullish crosses notify:
// the histogram must be rising and the last close must be above the
// prior close. Divergence against price is attached as best-effort
// context, never a gate.
type CrossStrategy struct {
	params   indicator.Params
	lookback int // extrema window radius for divergence
}

// NewCrossStrategy creates a cross strategy with the given MACD params.
func NewCrossStrategy(params indicator.Params) *CrossStrategy {
	return &CrossStrategy{
		params:   params.Normalize(),
		lookback: indicator.DefaultLookback,
	}
}

func (s *CrossStrategy) Name() string       { return "macd_cross" }
func (s *CrossStrategy) NeedsHistory() bool { return true }

func (s *CrossStrategy) Evaluate(in Input) (*model.Signal, error) {
	frame, err := indicator.ComputeFrame(in.History, s.params)
	if err != nil {
		return nil, err
	}

	cross := frame.Cross()
	if cross == model.DirectionNone {
		return nil, nil
	}

	closes := in.History.Closes()
	div := frame.Divergence(closes, s.lookback)

	if cross == model.DirectionBearish {
		log.Printf("[scanner] %s: bearish cross suppressed by confirmation policy", in.Symbol)
		return nil, nil
	}

	// Bullish confirmation: momentum building and price following through.
	last := len(closes) - 1
	if !frame.HistogramRising() {
		log.Printf("[scanner] %s: bullish cross filtered, histogram not rising", in.Symbol)
		return nil, nil
	}
	if closes[last] <= closes[last-1] {
		log.Printf("[scanner] %s: bullish cross filtered, price not rising", in.Symbol)
		return nil, nil
	}

	price := closes[last]
	reason := fmt.Sprintf("bullish MACD cross: macd %.4f > signal %.4f, histogram rising",
		frame.MACD[last], frame.Signal[last])

	return &model.Signal{
		Symbol:     in.Symbol,
		Kind:       model.KindCross,
		Direction:  model.DirectionBullish,
		Reason:     reason,
		Price:      price,
		MACD:       frame.MACD[last],
		SignalLine: frame.Signal[last],
		Histogram:  frame.Histogram[last],
		Divergence: div.Direction(),
		TS:         in.History.Bars[last].TS,
	}, nil
}

// MomentumStrategy raises a signal when a snapshot clears all configured
// thresholds.
type MomentumStrategy struct {
	thresholds momentum.Thresholds
}

// NewMomentumStrategy creates a momentum strategy.
func NewMomentumStrategy(th momentum.Thresholds) *MomentumStrategy {
	return &MomentumStrategy{thresholds: th}
}

func (s *MomentumStrategy) Name() string       { return "momentum" }
func (s *MomentumStrategy) NeedsHistory() bool { return false }

func (s *MomentumStrategy) Evaluate(in Input) (*model.Signal, error) {
	verdict := momentum.Evaluate(in.Sample, s.thresholds)
	if !verdict.Pass {
		return nil, nil
	}

	dir := model.DirectionBullish
	if in.Sample.ChangePct < 0 {
		dir = model.DirectionBearish
	}

	reason := fmt.Sprintf("momentum: price %.2f, change %+.2f%%, volume %d, rel volume %.2f",
		in.Sample.Price, in.Sample.ChangePct, in.Sample.Volume, in.Sample.RelVolume)

	return &model.Signal{
		Symbol:    in.Symbol,
		Kind:      model.KindMomentum,
		Direction: dir,
		Reason:    reason,
		Price:     in.Sample.Price,
		TS:        in.Sample.TS,
	}, nil
}
