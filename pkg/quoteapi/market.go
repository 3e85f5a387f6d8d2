package quoteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stock-scannerv1/internal/model"
)

// providerInterval maps a bar interval onto the provider's interval token.
// Unrecognized intervals fall back to daily bars.
func providerInterval(interval time.Duration) string {
	switch interval {
	case time.Minute:
		return "ONE_MINUTE"
	case 5 * time.Minute:
		return "FIVE_MINUTE"
	case 15 * time.Minute:
		return "FIFTEEN_MINUTE"
	case time.Hour:
		return "ONE_HOUR"
	default:
		return "ONE_DAY"
	}
}

const candleTimeLayout = "2006-01-02 15:04"

// Candles fetches historical bars for sym over [from, to] at the given
// interval, ordered by timestamp ascending.
func (c *Client) Candles(ctx context.Context, sym model.Symbol, interval time.Duration, from, to time.Time) ([]model.Bar, error) {
	res, err := c.post(ctx, "market.candles", map[string]string{
		"symbol":   string(sym),
		"interval": providerInterval(interval),
		"fromdate": from.Format(candleTimeLayout),
		"todate":   to.Format(candleTimeLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("candles %s: %w", sym, err)
	}

	// Each row is [timestamp, open, high, low, close, volume].
	var rows [][]json.RawMessage
	if err := json.Unmarshal(res.Data, &rows); err != nil {
		return nil, fmt.Errorf("candles %s: parse rows: %w", sym, err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("candles %s: row %d has %d fields", sym, i, len(row))
		}

		var tsStr string
		if err := json.Unmarshal(row[0], &tsStr); err != nil {
			return nil, fmt.Errorf("candles %s: row %d timestamp: %w", sym, i, err)
		}
		ts, err := time.Parse(time.RFC3339, tsStr)
		if err != nil {
			ts, err = time.Parse(candleTimeLayout, tsStr)
			if err != nil {
				return nil, fmt.Errorf("candles %s: row %d timestamp %q: %w", sym, i, tsStr, err)
			}
		}

		var closePx, volume float64
		if err := json.Unmarshal(row[4], &closePx); err != nil {
			return nil, fmt.Errorf("candles %s: row %d close: %w", sym, i, err)
		}
		if err := json.Unmarshal(row[5], &volume); err != nil {
			return nil, fmt.Errorf("candles %s: row %d volume: %w", sym, i, err)
		}

		bars = append(bars, model.Bar{
			TS:     ts.UTC(),
			Close:  closePx,
			Volume: int64(volume),
		})
	}
	return bars, nil
}

// Quote is the provider's point-in-time snapshot for one symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	LTP       float64 `json:"ltp"`
	Volume    float64 `json:"volume"`
	ChangePct float64 `json:"change_pct"`
	AvgVolume float64 `json:"avg_volume"` // trailing average daily volume
	Exchange  string  `json:"exchange"`
	ExchTS    int64   `json:"exch_ts"` // exchange timestamp, unix seconds
}

// GetQuote fetches the latest snapshot for sym.
func (c *Client) GetQuote(ctx context.Context, sym model.Symbol) (*Quote, error) {
	res, err := c.post(ctx, "market.quote", map[string]string{
		"symbol": string(sym),
		"mode":   "FULL",
	})
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", sym, err)
	}

	var q Quote
	if err := json.Unmarshal(res.Data, &q); err != nil {
		return nil, fmt.Errorf("quote %s: parse: %w", sym, err)
	}
	return &q, nil
}

// SearchResult is one symbol match from the provider's search endpoint.
type SearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// Search looks up symbols matching query.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	res, err := c.post(ctx, "market.search", map[string]string{
		"searchtext": query,
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	var out []SearchResult
	if err := json.Unmarshal(res.Data, &out); err != nil {
		return nil, fmt.Errorf("search %q: parse: %w", query, err)
	}
	return out, nil
}
