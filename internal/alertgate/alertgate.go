// Package alertgate enforces per-symbol cooldown and daily-quota limits
// before a signal may become a notification. State is owned by the Gate and
// injected where needed — no ambient globals — so tests can drive it with a
// fake clock.
package alertgate

import (
	"sync"
	"time"

	"stock-scannerv1/internal/model"
)

// Decision is the outcome of a CanAlert check.
type Decision struct {
	Allow  bool
	Reason string // set when denied: "daily quota reached" or "cooling down"
}

// Config holds the gate limits.
type Config struct {
	Cooldown   time.Duration  // minimum gap between alerts for one symbol
	DailyQuota int            // max alerts per symbol per calendar day
	Zone       *time.Location // calendar day boundary zone
}

// entry is the per-symbol alert state.
type entry struct {
	lastAlertAt time.Time // zero = no prior alert
	countToday  int
	dayKey      string // "2006-01-02" in the configured zone
}

// Gate is the per-symbol alert state machine.
type Gate struct {
	cfg Config

	mu      sync.Mutex
	entries map[model.Symbol]*entry

	// Injectable for deterministic tests.
	now func() time.Time
}

// New creates an alert gate. A nil Zone defaults to UTC.
func New(cfg Config) *Gate {
	if cfg.Zone == nil {
		cfg.Zone = time.UTC
	}
	return &Gate{
		cfg:     cfg,
		entries: make(map[model.Symbol]*entry, 64),
		now:     time.Now,
	}
}

// CanAlert decides whether sym may alert now. It performs lazy day-rollover
// bookkeeping (resetting the daily counter when the calendar day changed) but
// never mutates the alert counters themselves.
func (g *Gate) CanAlert(sym model.Symbol) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	e := g.entry(sym)

	// Day rollover: reset the counter when the calendar day (in the
	// configured zone) no longer matches.
	if dk := dayKey(now, g.cfg.Zone); e.dayKey != dk {
		e.dayKey = dk
		e.countToday = 0
	}

	if g.cfg.DailyQuota > 0 && e.countToday >= g.cfg.DailyQuota {
		return Decision{Allow: false, Reason: "daily quota reached"}
	}
	if !e.lastAlertAt.IsZero() && now.Sub(e.lastAlertAt) < g.cfg.Cooldown {
		return Decision{Allow: false, Reason: "cooling down"}
	}
	return Decision{Allow: true}
}

// RecordAlert marks a delivered alert for sym. Call it only after the
// notifier confirmed delivery, and only when the immediately preceding
// CanAlert for the same symbol allowed — it is the sole counter mutator.
func (g *Gate) RecordAlert(sym model.Symbol) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	e := g.entry(sym)
	if dk := dayKey(now, g.cfg.Zone); e.dayKey != dk {
		e.dayKey = dk
		e.countToday = 0
	}
	e.lastAlertAt = now
	e.countToday++
}

// Seed restores persisted alert state for sym, typically loaded from the
// journal at startup so a restart does not forget cooldowns and quotas.
// Counts recorded on a previous calendar day are dropped on the next check.
func (g *Gate) Seed(sym model.Symbol, lastAlertAt time.Time, countToday int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := g.entry(sym)
	e.lastAlertAt = lastAlertAt
	e.countToday = countToday
	e.dayKey = dayKey(lastAlertAt, g.cfg.Zone)
}

// CountToday returns the recorded alert count for sym on the current
// calendar day (for telemetry and the profile surface).
func (g *Gate) CountToday(sym model.Symbol) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[sym]
	if !ok || e.dayKey != dayKey(g.now(), g.cfg.Zone) {
		return 0
	}
	return e.countToday
}

func (g *Gate) entry(sym model.Symbol) *entry {
	e, ok := g.entries[sym]
	if !ok {
		e = &entry{}
		g.entries[sym] = e
	}
	return e
}

func dayKey(t time.Time, zone *time.Location) string {
	return t.In(zone).Format("2006-01-02")
}
