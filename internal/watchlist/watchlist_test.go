package watchlist

import (
	"errors"
	"path/filepath"
	"testing"

	"stock-scannerv1/internal/model"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.json")
	m, err := NewManager(NewFileStore(path))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, path
}

func TestManager_AddNormalizesAndDedupes(t *testing.T) {
	m, _ := newTestManager(t)

	sym, added, err := m.Add("aapl")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if sym != "AAPL" || !added {
		t.Fatalf("expected AAPL newly added, got %s added=%v", sym, added)
	}

	// Same symbol in different case is a duplicate, not a second entry.
	_, added, err = m.Add("AAPL")
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if added {
		t.Error("expected duplicate add to report added=false")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 symbol, got %d", m.Len())
	}
}

func TestManager_AddRejectsMalformed(t *testing.T) {
	m, _ := newTestManager(t)

	for _, raw := range []string{"", "AAPL MSFT", "TOOLONGSYMBOLNAME", "BRK$B"} {
		if _, _, err := m.Add(raw); err == nil {
			t.Errorf("expected error adding %q", raw)
		}
	}
	if m.Len() != 0 {
		t.Errorf("expected empty watchlist, got %d", m.Len())
	}
}

func TestManager_RemovePreservesOrder(t *testing.T) {
	m, _ := newTestManager(t)

	for _, raw := range []string{"AAPL", "MSFT", "NVDA"} {
		if _, _, err := m.Add(raw); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Remove("MSFT"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	got := m.List()
	want := []model.Symbol{"AAPL", "NVDA"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestManager_RemoveAbsentSymbol(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.Remove("TSLA")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_PersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.json")

	m1, err := NewManager(NewFileStore(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, raw := range []string{"MSFT", "AAPL", "BRK.B"} {
		if _, _, err := m1.Add(raw); err != nil {
			t.Fatal(err)
		}
	}

	m2, err := NewManager(NewFileStore(path))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	got := m2.List()
	want := []model.Symbol{"MSFT", "AAPL", "BRK.B"}
	if len(got) != len(want) {
		t.Fatalf("expected %v after reload, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))
	symbols, err := s.Load()
	if err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
	if len(symbols) != 0 {
		t.Errorf("expected empty watchlist, got %v", symbols)
	}
}
