package model

import (
	"fmt"
	"strings"
)

// MaxSymbolLen bounds ticker symbol length (e.g. "BRK.B", "RELIANCE-EQ").
const MaxSymbolLen = 12

// Symbol is a case-normalized ticker identifier. It uniquely keys all
// per-symbol state (series buffers, alert counters, watchlist entries).
type Symbol string

// ParseSymbol normalizes raw input to a Symbol: trims whitespace, uppercases,
// and validates the charset (A-Z, 0-9, '.', '-') and length bounds.
func ParseSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("symbol: empty")
	}
	if len(s) > MaxSymbolLen {
		return "", fmt.Errorf("symbol %q: longer than %d chars", s, MaxSymbolLen)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' {
			continue
		}
		return "", fmt.Errorf("symbol %q: invalid character %q", s, c)
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }
