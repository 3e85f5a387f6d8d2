// Package series holds per-symbol chronological sample windows. A Buffer is
// a fixed-capacity ring: once full, the oldest bar is overwritten, so the
// window never grows beyond what the slowest configured indicator needs.
package series

import (
	"time"

	"stock-scannerv1/internal/model"
)

// DefaultMargin is the slack added on top of the slowest indicator's minimum
// bar count when sizing buffers.
const DefaultMargin = 8

// Buffer is a fixed-capacity chronological window of bars for one symbol.
// Timestamps are strictly increasing; out-of-order pushes are rejected.
// Single-goroutine usage — no locks needed.
type Buffer struct {
	buf    []model.Bar
	head   int // next write position
	size   int
	lastTS time.Time

	// rejected counts out-of-order pushes (for telemetry).
	rejected uint64
}

// NewBuffer creates a buffer holding at most capacity bars. Minimum capacity
// is 2 (cross detection needs two defined indices).
func NewBuffer(capacity int) *Buffer {
	if capacity < 2 {
		capacity = 2
	}
	return &Buffer{buf: make([]model.Bar, capacity)}
}

// Push appends a bar, overwriting the oldest once full. Returns false and
// leaves the window untouched when the bar's timestamp does not strictly
// advance.
func (b *Buffer) Push(bar model.Bar) bool {
	if b.size > 0 && !bar.TS.After(b.lastTS) {
		b.rejected++
		return false
	}

	b.buf[b.head] = bar
	b.head = (b.head + 1) % len(b.buf)
	if b.size < len(b.buf) {
		b.size++
	}
	b.lastTS = bar.TS
	return true
}

// Len returns the current number of bars in the window.
func (b *Buffer) Len() int { return b.size }

// Cap returns the window capacity.
func (b *Buffer) Cap() int { return len(b.buf) }

// Rejected returns the total number of out-of-order pushes dropped.
func (b *Buffer) Rejected() uint64 { return b.rejected }

// Last returns the most recent bar, if any.
func (b *Buffer) Last() (model.Bar, bool) {
	if b.size == 0 {
		return model.Bar{}, false
	}
	return b.buf[(b.head-1+len(b.buf))%len(b.buf)], true
}

// History copies the window into a PriceHistory, oldest first.
func (b *Buffer) History(sym model.Symbol) *model.PriceHistory {
	h := &model.PriceHistory{Symbol: sym, Bars: make([]model.Bar, 0, b.size)}
	start := b.head - b.size
	for i := 0; i < b.size; i++ {
		h.Bars = append(h.Bars, b.buf[(start+i+len(b.buf))%len(b.buf)])
	}
	return h
}

// Store owns one Buffer per symbol, created on demand.
type Store struct {
	capacity int
	buffers  map[model.Symbol]*Buffer
}

// NewStore creates a Store whose buffers hold capacity bars each.
func NewStore(capacity int) *Store {
	return &Store{
		capacity: capacity,
		buffers:  make(map[model.Symbol]*Buffer, 64),
	}
}

// Buffer returns the window for sym, creating it on first use.
func (s *Store) Buffer(sym model.Symbol) *Buffer {
	b, ok := s.buffers[sym]
	if !ok {
		b = NewBuffer(s.capacity)
		s.buffers[sym] = b
	}
	return b
}

// Drop discards the window for sym (symbol removed from the watchlist).
func (s *Store) Drop(sym model.Symbol) {
	delete(s.buffers, sym)
}

// Len returns the number of tracked symbols.
func (s *Store) Len() int { return len(s.buffers) }
