// Package watchlist maintains the ordered set of symbols the scanner
// iterates over. Order is insertion order and survives restarts through
// a WatchlistStore.
package watchlist

import (
	"fmt"
	"sync"

	"stock-scannerv1/internal/model"
)

// Manager holds the in-memory watchlist and writes through to its store
// on every mutation.
type Manager struct {
	mu      sync.RWMutex
	symbols []model.Symbol
	index   map[model.Symbol]struct{}
	store   model.WatchlistStore
}

// NewManager loads the persisted watchlist from store. A missing or empty
// store yields an empty watchlist, not an error.
func NewManager(store model.WatchlistStore) (*Manager, error) {
	m := &Manager{
		index: make(map[model.Symbol]struct{}),
		store: store,
	}

	symbols, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("watchlist load: %w", err)
	}
	for _, sym := range symbols {
		if _, dup := m.index[sym]; dup {
			continue
		}
		m.symbols = append(m.symbols, sym)
		m.index[sym] = struct{}{}
	}
	return m, nil
}

// Add validates raw, appends it if not already present, and persists.
// Returns the parsed symbol and whether it was newly added.
func (m *Manager) Add(raw string) (model.Symbol, bool, error) {
	sym, err := model.ParseSymbol(raw)
	if err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[sym]; ok {
		return sym, false, nil
	}
	m.symbols = append(m.symbols, sym)
	m.index[sym] = struct{}{}

	if err := m.store.Save(m.snapshot()); err != nil {
		return sym, true, fmt.Errorf("watchlist save: %w", err)
	}
	return sym, true, nil
}

// Remove drops raw from the watchlist and persists. Removing an absent
// symbol wraps model.ErrNotFound.
func (m *Manager) Remove(raw string) error {
	sym, err := model.ParseSymbol(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[sym]; !ok {
		return fmt.Errorf("watchlist remove %s: %w", sym, model.ErrNotFound)
	}
	delete(m.index, sym)
	for i, s := range m.symbols {
		if s == sym {
			m.symbols = append(m.symbols[:i], m.symbols[i+1:]...)
			break
		}
	}

	if err := m.store.Save(m.snapshot()); err != nil {
		return fmt.Errorf("watchlist save: %w", err)
	}
	return nil
}

// Contains reports whether sym is on the watchlist.
func (m *Manager) Contains(sym model.Symbol) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[sym]
	return ok
}

// List returns the watchlist in insertion order.
func (m *Manager) List() []model.Symbol {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot()
}

// Len returns the number of watched symbols.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.symbols)
}

func (m *Manager) snapshot() []model.Symbol {
	out := make([]model.Symbol, len(m.symbols))
	copy(out, m.symbols)
	return out
}
