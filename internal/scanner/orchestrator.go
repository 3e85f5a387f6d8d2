package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stock-scannerv1/internal/alertgate"
	"stock-scannerv1/internal/fetchgate"
	"stock-scannerv1/internal/markethours"
	"stock-scannerv1/internal/model"
	"stock-scannerv1/internal/series"
)

// ErrScanInFlight is returned when a scan is requested while another
// pass is still running. At most one pass runs at a time.
var ErrScanInFlight = errors.New("scan already in flight")

// Config paces the scan loop. Zero fields take defaults.
type Config struct {
	BatchSize     int           // symbols per batch (default 5)
	ItemDelay     time.Duration // pause between symbols in a batch (default 2s)
	BatchDelay    time.Duration // pause between batches (default 10s)
	FetchAttempts int           // bounded fetch retry per symbol (default 2)
	RetryDelay    time.Duration // pause between fetch attempts (default 1s)

	Interval    time.Duration // history bar interval (default 24h)
	HistoryBars int           // bars requested per symbol (default strategy minimum + margin)
}

func (c Config) withDefaults(minBars int) Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.ItemDelay <= 0 {
		c.ItemDelay = 2 * time.Second
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = 10 * time.Second
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = 2
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 24 * time.Hour
	}
	if c.HistoryBars <= 0 {
		c.HistoryBars = minBars + series.DefaultMargin
	}
	return c
}

// Hooks let the daemon wire metrics and persistence without the
// orchestrator knowing about Prometheus, SQLite or Redis.
type Hooks struct {
	OnSignal         func(model.Signal)
	OnSuppressed     func(model.Symbol, string)
	OnDelivered      func(model.NotificationIntent, model.Signal)
	OnDeliveryFailed func(model.Symbol, error)
	OnSymbolError    func(model.Symbol, error)
	OnScanDone       func(Report)
}

// Report summarizes one scan pass.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Symbols    int // symbols attempted
	Signals    int // signals raised (including suppressed)
	Delivered  int // intents confirmed delivered
	Errors     int // symbols skipped on error
}

// Orchestrator runs scan passes over the watchlist.
type Orchestrator struct {
	cfg      Config
	source   model.DataSource
	gate     fetchgate.Gate
	alerts   *alertgate.Gate
	notifier model.Notifier
	strat    Strategy
	store    *series.Store // per-symbol history cache (cross mode)

	hooks   Hooks
	running atomic.Bool

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	newID func() string
}

// New creates an orchestrator.
func New(cfg Config, source model.DataSource, gate fetchgate.Gate, alerts *alertgate.Gate, notifier model.Notifier, strat Strategy) *Orchestrator {
	minBars := 0
	if cs, ok := strat.(*CrossStrategy); ok {
		minBars = cs.params.MinBars()
	}
	cfg = cfg.withDefaults(minBars)

	return &Orchestrator{
		cfg:      cfg,
		source:   source,
		gate:     gate,
		alerts:   alerts,
		notifier: notifier,
		strat:    strat,
		store:    series.NewStore(cfg.HistoryBars),
		now:      time.Now,
		sleep:    sleepCtx,
		newID:    uuid.NewString,
	}
}

// SetHooks installs the daemon's callbacks. Call before the first scan.
func (o *Orchestrator) SetHooks(h Hooks) { o.hooks = h }

// Scan runs one pass over symbols. Only one pass runs at a time;
// concurrent calls get ErrScanInFlight.
func (o *Orchestrator) Scan(ctx context.Context, symbols []model.Symbol) (Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return Report{}, ErrScanInFlight
	}
	defer o.running.Store(false)

	report := Report{StartedAt: o.now()}
	log.Printf("[scanner] pass started: %d symbols, strategy=%s", len(symbols), o.strat.Name())

	for i, sym := range symbols {
		if i > 0 {
			delay := o.cfg.ItemDelay
			if i%o.cfg.BatchSize == 0 {
				delay = o.cfg.BatchDelay
			}
			if err := o.sleep(ctx, delay); err != nil {
				return o.finish(report), err
			}
		}

		report.Symbols++
		signaled, delivered, err := o.scanSymbol(ctx, sym)
		if signaled {
			report.Signals++
		}
		if delivered {
			report.Delivered++
		}
		if err != nil {
			if ctx.Err() != nil {
				return o.finish(report), ctx.Err()
			}
			report.Errors++
			log.Printf("[scanner] %s skipped: %v", sym, err)
			if o.hooks.OnSymbolError != nil {
				o.hooks.OnSymbolError(sym, err)
			}
		}
	}

	report = o.finish(report)
	log.Printf("[scanner] pass done: %d symbols, %d signals, %d delivered, %d errors in %v",
		report.Symbols, report.Signals, report.Delivered, report.Errors,
		report.FinishedAt.Sub(report.StartedAt))
	return report, nil
}

func (o *Orchestrator) finish(r Report) Report {
	r.FinishedAt = o.now()
	if o.hooks.OnScanDone != nil {
		o.hooks.OnScanDone(r)
	}
	return r
}

// RunPeriodic scans every interval until ctx is cancelled. Passes are
// skipped while the market session is closed (session may be nil to scan
// around the clock) and while a previous pass is still running.
func (o *Orchestrator) RunPeriodic(ctx context.Context, interval time.Duration, symbols func() []model.Symbol, session *markethours.Session) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if session != nil && !session.IsOpen(o.now()) {
				log.Printf("[scanner] market closed, skipping pass (%s)", session.StatusString(o.now()))
				continue
			}
			if _, err := o.Scan(ctx, symbols()); err != nil {
				if errors.Is(err, ErrScanInFlight) {
					log.Printf("[scanner] previous pass still running, skipping tick")
					continue
				}
				if ctx.Err() != nil {
					return
				}
				log.Printf("[scanner] pass error: %v", err)
			}
		}
	}
}

// scanSymbol runs the gate-fetch-evaluate-notify pipeline for one symbol.
func (o *Orchestrator) scanSymbol(ctx context.Context, sym model.Symbol) (signaled, delivered bool, err error) {
	if err := o.gate.Acquire(ctx); err != nil {
		return false, false, fmt.Errorf("gate: %w", err)
	}

	in, err := o.fetch(ctx, sym)
	if err != nil {
		return false, false, err
	}

	sig, err := o.strat.Evaluate(in)
	if err != nil {
		return false, false, fmt.Errorf("evaluate: %w", err)
	}
	if sig == nil {
		return false, false, nil
	}

	if o.hooks.OnSignal != nil {
		o.hooks.OnSignal(*sig)
	}

	dec := o.alerts.CanAlert(sym)
	if !dec.Allow {
		log.Printf("[scanner] %s signal suppressed: %s", sym, dec.Reason)
		if o.hooks.OnSuppressed != nil {
			o.hooks.OnSuppressed(sym, dec.Reason)
		}
		return true, false, nil
	}

	intent := o.buildIntent(sig, in)
	if err := o.notifier.Notify(ctx, intent); err != nil {
		if o.hooks.OnDeliveryFailed != nil {
			o.hooks.OnDeliveryFailed(sym, err)
		}
		return true, false, fmt.Errorf("notify: %w", err)
	}

	// Record only after confirmed delivery so a failed send does not
	// consume cooldown or quota.
	o.alerts.RecordAlert(sym)
	if o.hooks.OnDelivered != nil {
		o.hooks.OnDelivered(intent, *sig)
	}
	return true, true, nil
}

// fetch pulls the strategy's input with a bounded retry. Throttling
// responses feed back into the gate; unknown symbols are never retried.
func (o *Orchestrator) fetch(ctx context.Context, sym model.Symbol) (Input, error) {
	var in Input
	var err error

	for attempt := 1; ; attempt++ {
		in, err = o.fetchOnce(ctx, sym)
		if err == nil {
			return in, nil
		}
		if errors.Is(err, model.ErrThrottled) {
			o.gate.ReportThrottled()
		}
		if errors.Is(err, model.ErrNotFound) || ctx.Err() != nil || attempt >= o.cfg.FetchAttempts {
			return Input{}, fmt.Errorf("fetch: %w", err)
		}
		if serr := o.sleep(ctx, o.cfg.RetryDelay); serr != nil {
			return Input{}, serr
		}
	}
}

func (o *Orchestrator) fetchOnce(ctx context.Context, sym model.Symbol) (Input, error) {
	in := Input{Symbol: sym}

	if !o.strat.NeedsHistory() {
		sample, err := o.source.FetchSnapshot(ctx, sym)
		if err != nil {
			return Input{}, err
		}
		in.Sample = sample
		return in, nil
	}

	// Request twice the bar span in wall-clock time so weekends and
	// holidays still yield enough bars.
	to := o.now()
	from := to.Add(-2 * o.cfg.Interval * time.Duration(o.cfg.HistoryBars))

	hist, err := o.source.FetchHistory(ctx, sym, o.cfg.Interval, from, to)
	if err != nil {
		return Input{}, err
	}

	// Merge into the per-symbol cache; Push drops bars we already hold.
	buf := o.store.Buffer(sym)
	for _, bar := range hist.Bars {
		buf.Push(bar)
	}
	in.History = buf.History(sym)
	return in, nil
}

func (o *Orchestrator) buildIntent(sig *model.Signal, in Input) model.NotificationIntent {
	signalDetails := sig.Reason
	if sig.Divergence == model.DirectionBullish || sig.Divergence == model.DirectionBearish {
		signalDetails += fmt.Sprintf("; %s divergence", sig.Divergence)
	}

	sampleDetails := fmt.Sprintf("price %.2f at %s", sig.Price, sig.TS.Format(time.RFC3339))
	if in.Sample != nil {
		sampleDetails = fmt.Sprintf("price %.2f, change %+.2f%%, volume %d at %s",
			in.Sample.Price, in.Sample.ChangePct, in.Sample.Volume, in.Sample.TS.Format(time.RFC3339))
	}

	return model.NotificationIntent{
		ID:            o.newID(),
		Symbol:        sig.Symbol,
		Kind:          sig.Kind,
		SignalDetails: signalDetails,
		SampleDetails: sampleDetails,
		TS:            o.now(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
