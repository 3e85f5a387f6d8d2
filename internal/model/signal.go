package model

import (
	"encoding/json"
	"time"
)

// SignalKind identifies which evaluation mode produced a signal.
type SignalKind string

const (
	KindCross    SignalKind = "cross"
	KindMomentum SignalKind = "momentum"
)

// Direction is the side of a cross or divergence event.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNone    Direction = "none"
)

// Signal is a per-symbol verdict emitted by an evaluation strategy.
// A nil *Signal from a strategy means "nothing to report this pass".
type Signal struct {
	Symbol     Symbol     `json:"symbol"`
	Kind       SignalKind `json:"kind"`
	Direction  Direction  `json:"direction"`
	Reason     string     `json:"reason"`
	Price      float64    `json:"price"`
	MACD       float64    `json:"macd,omitempty"`
	SignalLine float64    `json:"signal_line,omitempty"`
	Histogram  float64    `json:"histogram,omitempty"`
	Divergence Direction  `json:"divergence,omitempty"`
	TS         time.Time  `json:"ts"`
}

// NotificationIntent is the outbound payload handed to the notifier once a
// signal clears the alert gate. ID is assigned by the orchestrator.
type NotificationIntent struct {
	ID            string     `json:"id"`
	Symbol        Symbol     `json:"symbol"`
	Kind          SignalKind `json:"kind"`
	SignalDetails string     `json:"signal_details"`
	SampleDetails string     `json:"sample_details"`
	TS            time.Time  `json:"ts"`
}

// JSON returns the JSON-encoded intent (ignoring errors for hot-path usage).
func (n *NotificationIntent) JSON() []byte {
	b, _ := json.Marshal(n)
	return b
}

// PubSubChannel returns the per-symbol publish channel for this intent.
func (n *NotificationIntent) PubSubChannel() string {
	return "pub:signal:" + string(n.Symbol)
}
