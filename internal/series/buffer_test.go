package series

import (
	"testing"
	"time"

	"stock-scannerv1/internal/model"
)

func bar(sec int, close float64) model.Bar {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	return model.Bar{TS: base.Add(time.Duration(sec) * time.Second), Close: close}
}

func TestBuffer_OverwritesOldest(t *testing.T) {
	b := NewBuffer(3)
	for i := 1; i <= 5; i++ {
		if !b.Push(bar(i, float64(100+i))) {
			t.Fatalf("push %d rejected", i)
		}
	}

	if b.Len() != 3 {
		t.Fatalf("Len=%d, want 3", b.Len())
	}

	h := b.History("X")
	want := []float64{103, 104, 105}
	for i, w := range want {
		if h.Bars[i].Close != w {
			t.Errorf("bar %d: close=%.0f, want %.0f", i, h.Bars[i].Close, w)
		}
	}
}

func TestBuffer_RejectsOutOfOrder(t *testing.T) {
	b := NewBuffer(4)
	b.Push(bar(10, 100))

	if b.Push(bar(10, 101)) {
		t.Error("equal timestamp accepted")
	}
	if b.Push(bar(9, 101)) {
		t.Error("earlier timestamp accepted")
	}
	if b.Rejected() != 2 {
		t.Errorf("Rejected=%d, want 2", b.Rejected())
	}
	if b.Len() != 1 {
		t.Errorf("Len=%d, want 1", b.Len())
	}
}

func TestBuffer_HistoryIsOrdered(t *testing.T) {
	b := NewBuffer(8)
	for i := 1; i <= 6; i++ {
		b.Push(bar(i, float64(i)))
	}
	h := b.History("X")
	for i := 1; i < h.Len(); i++ {
		if !h.Bars[i].TS.After(h.Bars[i-1].TS) {
			t.Fatalf("bars %d,%d out of order", i-1, i)
		}
	}
}

func TestBuffer_Last(t *testing.T) {
	b := NewBuffer(2)
	if _, ok := b.Last(); ok {
		t.Error("Last on empty buffer reported a bar")
	}
	b.Push(bar(1, 100))
	b.Push(bar(2, 200))
	b.Push(bar(3, 300))
	last, ok := b.Last()
	if !ok || last.Close != 300 {
		t.Errorf("Last=%+v ok=%v, want close 300", last, ok)
	}
}

func TestStore_PerSymbolIsolation(t *testing.T) {
	s := NewStore(4)
	s.Buffer("AAPL").Push(bar(1, 100))
	s.Buffer("MSFT").Push(bar(1, 200))

	if s.Buffer("AAPL").Len() != 1 || s.Buffer("MSFT").Len() != 1 {
		t.Error("buffers not isolated per symbol")
	}
	if s.Len() != 2 {
		t.Errorf("Store.Len=%d, want 2", s.Len())
	}

	s.Drop("AAPL")
	if s.Len() != 1 {
		t.Errorf("Store.Len after Drop=%d, want 1", s.Len())
	}
	if s.Buffer("AAPL").Len() != 0 {
		t.Error("dropped symbol retained bars")
	}
}
