// Package marketdata adapts the quote provider into the scanner's
// DataSource port: candle history over REST and snapshots served from
// the live stream cache when fresh, falling back to a REST quote.
package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-scannerv1/internal/indicator"
	"stock-scannerv1/internal/model"
	"stock-scannerv1/pkg/quoteapi"
)

// quoteClient is the subset of the quoteapi client the source needs.
type quoteClient interface {
	Candles(ctx context.Context, sym model.Symbol, interval time.Duration, from, to time.Time) ([]model.Bar, error)
	GetQuote(ctx context.Context, sym model.Symbol) (*quoteapi.Quote, error)
}

// snapshotCache serves recent samples without an HTTP roundtrip.
// Satisfied by *Stream.
type snapshotCache interface {
	Latest(sym model.Symbol) (model.Sample, bool)
}

// Source implements model.DataSource.
type Source struct {
	client quoteClient
	stream snapshotCache // optional

	// Samples older than maxSnapshotAge fall through to a REST quote.
	maxSnapshotAge time.Duration

	// Trailing average volume per symbol, rebuilt from each history
	// fetch. Backfills RelVolume when the provider omits AvgVolume.
	mu        sync.Mutex
	baselines map[model.Symbol]*indicator.SMA

	now func() time.Time
}

const (
	defaultMaxSnapshotAge = 30 * time.Second

	// volumeBaselinePeriod is the trailing window for the average-volume
	// baseline, matching the 20-session average quoted by most providers.
	volumeBaselinePeriod = 20
)

// NewSource creates a Source. stream may be nil, in which case every
// snapshot is fetched over REST.
func NewSource(client *quoteapi.Client, stream *Stream) *Source {
	s := &Source{
		client:         client,
		maxSnapshotAge: defaultMaxSnapshotAge,
		baselines:      make(map[model.Symbol]*indicator.SMA),
		now:            time.Now,
	}
	if stream != nil {
		s.stream = stream
	}
	return s
}

// FetchHistory returns ordered price history for sym over [from, to].
func (s *Source) FetchHistory(ctx context.Context, sym model.Symbol, interval time.Duration, from, to time.Time) (*model.PriceHistory, error) {
	bars, err := s.client.Candles(ctx, sym, interval, from, to)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("history %s: %w: empty response", sym, model.ErrDataUnavailable)
	}

	hist := &model.PriceHistory{Symbol: sym}
	for _, bar := range bars {
		// Append rejects out-of-order rows; providers occasionally
		// repeat the boundary bar of a paged response.
		hist.Append(bar)
	}
	s.rebuildBaseline(sym, hist)
	return hist, nil
}

// rebuildBaseline recomputes the trailing volume average from a fresh
// history fetch. Rebuilding from scratch keeps overlapping fetches from
// double-counting bars.
func (s *Source) rebuildBaseline(sym model.Symbol, hist *model.PriceHistory) {
	sma := indicator.NewSMA(volumeBaselinePeriod)
	fed := 0
	for _, bar := range hist.Bars {
		if bar.Volume > 0 {
			sma.Update(float64(bar.Volume))
			fed++
		}
	}
	if fed == 0 {
		return
	}
	s.mu.Lock()
	if s.baselines == nil {
		s.baselines = make(map[model.Symbol]*indicator.SMA)
	}
	s.baselines[sym] = sma
	s.mu.Unlock()
}

// volumeBaseline returns the trailing average volume for sym, or 0 when
// no history has been fetched yet.
func (s *Source) volumeBaseline(sym model.Symbol) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sma, ok := s.baselines[sym]; ok {
		return sma.PartialValue()
	}
	return 0
}

// FetchSnapshot returns the latest sample for sym, serving from the
// stream cache when the cached sample is fresh enough.
func (s *Source) FetchSnapshot(ctx context.Context, sym model.Symbol) (*model.Sample, error) {
	if s.stream != nil {
		if sample, ok := s.stream.Latest(sym); ok && s.now().Sub(sample.TS) <= s.maxSnapshotAge {
			return &sample, nil
		}
	}

	q, err := s.client.GetQuote(ctx, sym)
	if err != nil {
		return nil, err
	}
	sample := quoteToSample(sym, q)
	if sample.RelVolume == 0 && sample.Volume > 0 {
		if avg := s.volumeBaseline(sym); avg > 0 {
			sample.RelVolume = float64(sample.Volume) / avg
		}
	}
	return &sample, nil
}

// quoteToSample normalizes a provider quote. RelVolume is the day's
// volume against the trailing average; zero average means unknown.
func quoteToSample(sym model.Symbol, q *quoteapi.Quote) model.Sample {
	relVol := 0.0
	if q.AvgVolume > 0 {
		relVol = q.Volume / q.AvgVolume
	}
	ts := time.Unix(q.ExchTS, 0).UTC()
	if q.ExchTS == 0 {
		ts = time.Now().UTC()
	}
	return model.Sample{
		Symbol:    sym,
		Price:     q.LTP,
		Volume:    int64(q.Volume),
		ChangePct: q.ChangePct,
		RelVolume: relVol,
		TS:        ts,
	}
}
