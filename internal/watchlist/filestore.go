package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"stock-scannerv1/internal/model"
)

// FileStore persists the watchlist as a JSON array on disk.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated watchlist.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the watchlist. A missing file is an empty watchlist.
func (s *FileStore) Load() ([]model.Symbol, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}

	symbols := make([]model.Symbol, 0, len(raw))
	for _, r := range raw {
		sym, err := model.ParseSymbol(r)
		if err != nil {
			// Skip malformed entries rather than failing the whole load.
			continue
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

// Save writes the watchlist atomically.
func (s *FileStore) Save(symbols []model.Symbol) error {
	raw := make([]string, len(symbols))
	for i, sym := range symbols {
		raw[i] = string(sym)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watchlist: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
