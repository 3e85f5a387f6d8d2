package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"stock-scannerv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// JournalConfig configures the SQLite journal.
type JournalConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/scanner.db"
}

// Journal persists delivered alerts and scan runs. It is the durable record
// the alert gate is warm-started from after a restart.
type Journal struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New creates a new Journal, initializing the database with WAL mode and schema.
func New(cfg JournalConfig) (*Journal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT    PRIMARY KEY,
			symbol      TEXT    NOT NULL,
			kind        TEXT    NOT NULL,
			direction   TEXT    NOT NULL,
			reason      TEXT    NOT NULL,
			price       REAL,
			macd        REAL,
			signal_line REAL,
			histogram   REAL,
			ts          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_symbol_ts ON alerts (symbol, ts);

		CREATE TABLE IF NOT EXISTS scan_runs (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER NOT NULL,
			symbols_scanned INTEGER NOT NULL,
			signals         INTEGER NOT NULL,
			errors          INTEGER NOT NULL
		);
	`)
	return err
}

// AlertRecord is one journaled alert row.
type AlertRecord struct {
	ID        string
	Symbol    model.Symbol
	Kind      model.SignalKind
	Direction model.Direction
	Reason    string
	Price     float64
	MACD      float64
	Signal    float64
	Histogram float64
	TS        time.Time
}

// RecordAlert journals a delivered alert.
func (j *Journal) RecordAlert(ctx context.Context, intent model.NotificationIntent, sig model.Signal) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO alerts (id, symbol, kind, direction, reason, price, macd, signal_line, histogram, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, intent.ID, string(intent.Symbol), string(sig.Kind), string(sig.Direction), sig.Reason,
		sig.Price, sig.MACD, sig.SignalLine, sig.Histogram, intent.TS.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert alert: %w", err)
	}
	return nil
}

// ScanRun summarizes one completed scan pass.
type ScanRun struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Symbols    int
	Signals    int
	Errors     int
}

// RecordScanRun journals a completed scan pass.
func (j *Journal) RecordScanRun(ctx context.Context, run ScanRun) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO scan_runs (started_at, finished_at, symbols_scanned, signals, errors)
		VALUES (?, ?, ?, ?, ?)
	`, run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Symbols, run.Signals, run.Errors)
	if err != nil {
		return fmt.Errorf("sqlite insert scan run: %w", err)
	}
	return nil
}

// RecentAlerts returns the most recent alerts for sym, newest first.
// An empty symbol returns alerts across all symbols.
func (j *Journal) RecentAlerts(ctx context.Context, sym model.Symbol, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, kind, direction, reason, price, macd, signal_line, histogram, ts
		FROM alerts`
	args := []interface{}{}
	if sym != "" {
		query += ` WHERE symbol = ?`
		args = append(args, string(sym))
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		var symbol, kind, direction string
		var tsUnix int64
		if err := rows.Scan(&rec.ID, &symbol, &kind, &direction, &rec.Reason,
			&rec.Price, &rec.MACD, &rec.Signal, &rec.Histogram, &tsUnix); err != nil {
			return nil, fmt.Errorf("sqlite scan alert: %w", err)
		}
		rec.Symbol = model.Symbol(symbol)
		rec.Kind = model.SignalKind(kind)
		rec.Direction = model.Direction(direction)
		rec.TS = time.Unix(tsUnix, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GateState is the persisted per-symbol alert state used to warm-start
// the alert gate after a restart.
type GateState struct {
	LastAlertAt time.Time
	CountSince  int
}

// LoadGateState returns, per symbol, the last alert time and the number of
// alerts recorded at or after dayStart.
func (j *Journal) LoadGateState(ctx context.Context, dayStart time.Time) (map[model.Symbol]GateState, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, MAX(ts), SUM(CASE WHEN ts >= ? THEN 1 ELSE 0 END)
		FROM alerts
		GROUP BY symbol
	`, dayStart.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query gate state: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Symbol]GateState)
	for rows.Next() {
		var symbol string
		var lastTS int64
		var count int
		if err := rows.Scan(&symbol, &lastTS, &count); err != nil {
			return nil, fmt.Errorf("sqlite scan gate state: %w", err)
		}
		out[model.Symbol(symbol)] = GateState{
			LastAlertAt: time.Unix(lastTS, 0).UTC(),
			CountSince:  count,
		}
	}
	return out, rows.Err()
}

// Prune deletes alerts and scan runs older than before.
func (j *Journal) Prune(ctx context.Context, before time.Time) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM alerts WHERE ts < ?`, before.Unix()); err != nil {
		return fmt.Errorf("sqlite prune alerts: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, `DELETE FROM scan_runs WHERE finished_at < ?`, before.Unix()); err != nil {
		return fmt.Errorf("sqlite prune scan runs: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
