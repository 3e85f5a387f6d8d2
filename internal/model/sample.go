package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sample is one market observation for a symbol. Immutable once produced.
// Volume, ChangePct and RelVolume are optional; zero values mean "not
// reported by the source".
type Sample struct {
	Symbol    Symbol    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume,omitempty"`
	ChangePct float64   `json:"change_pct,omitempty"`
	RelVolume float64   `json:"rel_volume,omitempty"` // current / trailing avg volume
	TS        time.Time `json:"ts"`
}

// JSON returns the JSON-encoded sample (ignoring errors for hot-path usage).
func (s *Sample) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Bar is one closing-price observation inside a PriceHistory.
type Bar struct {
	TS     time.Time `json:"ts"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}

// PriceHistory is an ordered sequence of closing prices for one symbol,
// strictly increasing by timestamp, oldest first.
type PriceHistory struct {
	Symbol Symbol
	Bars   []Bar
}

// Append adds a bar, enforcing the strictly-increasing timestamp invariant.
func (h *PriceHistory) Append(b Bar) error {
	if n := len(h.Bars); n > 0 && !b.TS.After(h.Bars[n-1].TS) {
		return fmt.Errorf("history %s: bar at %s not after last bar %s",
			h.Symbol, b.TS.Format(time.RFC3339), h.Bars[n-1].TS.Format(time.RFC3339))
	}
	h.Bars = append(h.Bars, b)
	return nil
}

// Len returns the number of bars.
func (h *PriceHistory) Len() int { return len(h.Bars) }

// Closes returns the closing prices, oldest first.
func (h *PriceHistory) Closes() []float64 {
	out := make([]float64, len(h.Bars))
	for i, b := range h.Bars {
		out[i] = b.Close
	}
	return out
}
