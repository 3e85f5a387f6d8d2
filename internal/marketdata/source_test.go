package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock-scannerv1/internal/model"
	"stock-scannerv1/pkg/quoteapi"
)

type stubClient struct {
	bars      []model.Bar
	barsErr   error
	quote     *quoteapi.Quote
	quoteErr  error
	quoteHits int
}

func (s *stubClient) Candles(ctx context.Context, sym model.Symbol, interval time.Duration, from, to time.Time) ([]model.Bar, error) {
	return s.bars, s.barsErr
}

func (s *stubClient) GetQuote(ctx context.Context, sym model.Symbol) (*quoteapi.Quote, error) {
	s.quoteHits++
	return s.quote, s.quoteErr
}

type stubCache struct {
	sample model.Sample
	ok     bool
}

func (s *stubCache) Latest(sym model.Symbol) (model.Sample, bool) { return s.sample, s.ok }

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestSource_FetchHistoryOrdersAndDedupes(t *testing.T) {
	client := &stubClient{bars: []model.Bar{
		{TS: day(2), Close: 100, Volume: 1000},
		{TS: day(3), Close: 101, Volume: 1100},
		{TS: day(3), Close: 101, Volume: 1100}, // repeated boundary bar
		{TS: day(4), Close: 102, Volume: 1200},
	}}
	src := &Source{client: client, now: time.Now}

	hist, err := src.FetchHistory(context.Background(), "AAPL", 24*time.Hour, day(1), day(5))
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}
	if hist.Len() != 3 {
		t.Fatalf("expected 3 bars after dedupe, got %d", hist.Len())
	}
	closes := hist.Closes()
	for i, want := range []float64{100, 101, 102} {
		if closes[i] != want {
			t.Errorf("close %d: expected %v, got %v", i, want, closes[i])
		}
	}
}

func TestSource_FetchHistoryEmptyResponse(t *testing.T) {
	src := &Source{client: &stubClient{}, now: time.Now}

	_, err := src.FetchHistory(context.Background(), "AAPL", 24*time.Hour, day(1), day(5))
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for empty history, got %v", err)
	}
}

func TestSource_FetchHistoryPropagatesThrottle(t *testing.T) {
	src := &Source{
		client: &stubClient{barsErr: model.ErrThrottled},
		now:    time.Now,
	}

	_, err := src.FetchHistory(context.Background(), "AAPL", 24*time.Hour, day(1), day(5))
	if !errors.Is(err, model.ErrThrottled) {
		t.Errorf("expected ErrThrottled, got %v", err)
	}
}

func TestSource_SnapshotPrefersFreshCache(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	cached := model.Sample{Symbol: "AAPL", Price: 105, TS: now.Add(-10 * time.Second)}
	client := &stubClient{quote: &quoteapi.Quote{LTP: 999}}

	src := &Source{
		client:         client,
		stream:         &stubCache{sample: cached, ok: true},
		maxSnapshotAge: defaultMaxSnapshotAge,
		now:            func() time.Time { return now },
	}

	got, err := src.FetchSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.Price != 105 {
		t.Errorf("expected cached price 105, got %v", got.Price)
	}
	if client.quoteHits != 0 {
		t.Errorf("expected no REST hits, got %d", client.quoteHits)
	}
}

func TestSource_SnapshotFallsBackWhenStale(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	stale := model.Sample{Symbol: "AAPL", Price: 105, TS: now.Add(-5 * time.Minute)}
	client := &stubClient{quote: &quoteapi.Quote{
		LTP: 106.5, Volume: 2_000_000, ChangePct: 1.2, AvgVolume: 1_000_000,
		ExchTS: now.Unix(),
	}}

	src := &Source{
		client:         client,
		stream:         &stubCache{sample: stale, ok: true},
		maxSnapshotAge: defaultMaxSnapshotAge,
		now:            func() time.Time { return now },
	}

	got, err := src.FetchSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if got.Price != 106.5 {
		t.Errorf("expected REST price 106.5, got %v", got.Price)
	}
	if got.RelVolume != 2.0 {
		t.Errorf("expected rel volume 2.0, got %v", got.RelVolume)
	}
	if client.quoteHits != 1 {
		t.Errorf("expected 1 REST hit, got %d", client.quoteHits)
	}
}

func TestSource_SnapshotZeroAvgVolume(t *testing.T) {
	client := &stubClient{quote: &quoteapi.Quote{LTP: 50, Volume: 1000, AvgVolume: 0}}
	src := &Source{client: client, now: time.Now}

	got, err := src.FetchSnapshot(context.Background(), "XYZ")
	if err != nil {
		t.Fatal(err)
	}
	if got.RelVolume != 0 {
		t.Errorf("expected rel volume 0 for unknown average, got %v", got.RelVolume)
	}
}

func TestSource_SnapshotBackfillsRelVolumeFromHistory(t *testing.T) {
	// Volumes 1000, 1100, 1200 average to 1100; a quote without AvgVolume
	// must fall back to that trailing baseline.
	client := &stubClient{
		bars: []model.Bar{
			{TS: day(2), Close: 100, Volume: 1000},
			{TS: day(3), Close: 101, Volume: 1100},
			{TS: day(4), Close: 102, Volume: 1200},
		},
		quote: &quoteapi.Quote{LTP: 50, Volume: 2200, AvgVolume: 0},
	}
	src := NewSource(nil, nil)
	src.client = client

	if _, err := src.FetchHistory(context.Background(), "XYZ", 24*time.Hour, day(1), day(5)); err != nil {
		t.Fatalf("fetch history: %v", err)
	}

	got, err := src.FetchSnapshot(context.Background(), "XYZ")
	if err != nil {
		t.Fatal(err)
	}
	if got.RelVolume != 2.0 {
		t.Errorf("expected rel volume 2.0 from baseline, got %v", got.RelVolume)
	}
}

func TestSource_ProviderAverageWinsOverBaseline(t *testing.T) {
	client := &stubClient{
		bars: []model.Bar{
			{TS: day(2), Close: 100, Volume: 1000},
			{TS: day(3), Close: 101, Volume: 1000},
		},
		quote: &quoteapi.Quote{LTP: 50, Volume: 4000, AvgVolume: 2000},
	}
	src := NewSource(nil, nil)
	src.client = client

	if _, err := src.FetchHistory(context.Background(), "XYZ", 24*time.Hour, day(1), day(5)); err != nil {
		t.Fatalf("fetch history: %v", err)
	}

	got, err := src.FetchSnapshot(context.Background(), "XYZ")
	if err != nil {
		t.Fatal(err)
	}
	if got.RelVolume != 2.0 {
		t.Errorf("expected provider average to win (rel volume 2.0), got %v", got.RelVolume)
	}
}

func TestSource_BaselineKeepsTrailingWindow(t *testing.T) {
	// 25 bars of volume 1..25: the 20-bar window holds 6..25, average 15.5.
	bars := make([]model.Bar, 25)
	for i := range bars {
		bars[i] = model.Bar{TS: day(1 + i), Close: 100, Volume: int64(i + 1)}
	}
	client := &stubClient{
		bars:  bars,
		quote: &quoteapi.Quote{LTP: 50, Volume: 31, AvgVolume: 0},
	}
	src := NewSource(nil, nil)
	src.client = client

	if _, err := src.FetchHistory(context.Background(), "XYZ", 24*time.Hour, day(1), day(26)); err != nil {
		t.Fatalf("fetch history: %v", err)
	}

	got, err := src.FetchSnapshot(context.Background(), "XYZ")
	if err != nil {
		t.Fatal(err)
	}
	if got.RelVolume != 2.0 {
		t.Errorf("expected 31/15.5 = 2.0, got %v", got.RelVolume)
	}
}
