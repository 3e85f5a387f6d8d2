package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	ScansTotal   prometheus.Counter
	ScanDur      prometheus.Histogram
	SymbolErrors prometheus.Counter

	FetchesTotal   prometheus.Counter
	FetchThrottles prometheus.Counter
	GateWaitDur    prometheus.Histogram

	SignalsTotal     *prometheus.CounterVec // labels: kind
	AlertsSuppressed *prometheus.CounterVec // labels: reason
	IntentsDelivered prometheus.Counter
	DeliveryFailures prometheus.Counter

	JournalWriteDur prometheus.Histogram
	RedisPublishDur prometheus.Histogram

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisBufferedPublishes   prometheus.Counter
	RedisBufferPending       prometheus.Gauge // intents held while the breaker is open

	// Quote stream
	StreamReconnects prometheus.Counter
	SamplesTotal     prometheus.Counter

	// Market session state
	MarketState        prometheus.Gauge       // 0=closed, 1=open
	SessionTransitions *prometheus.CounterVec // labels: type=open|close
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_scans_total",
			Help: "Total scan passes started",
		}),
		ScanDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_duration_seconds",
			Help:    "Wall-clock duration of a full scan pass",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SymbolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_symbol_errors_total",
			Help: "Symbols skipped in a pass due to fetch or evaluation errors",
		}),

		FetchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_fetches_total",
			Help: "Total provider fetch attempts",
		}),
		FetchThrottles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_fetch_throttles_total",
			Help: "Provider responses classified as throttling",
		}),
		GateWaitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_gate_wait_duration_seconds",
			Help:    "Time spent waiting on the fetch gate per acquire",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 15, 60},
		}),

		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_total",
			Help: "Signals raised by strategies (by kind)",
		}, []string{"kind"}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_alerts_suppressed_total",
			Help: "Signals suppressed by the alert gate (by reason)",
		}, []string{"reason"}),
		IntentsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_intents_delivered_total",
			Help: "Notification intents confirmed delivered",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_delivery_failures_total",
			Help: "Notification deliveries that failed on all backends",
		}),

		JournalWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_journal_write_duration_seconds",
			Help:    "SQLite journal write latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_redis_publish_duration_seconds",
			Help:    "Redis signal publish latency",
			Buckets: prometheus.DefBuckets,
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisBufferedPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_redis_buffered_publishes_total",
			Help: "Publishes buffered locally during circuit breaker open state",
		}),
		RedisBufferPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_redis_buffer_pending",
			Help: "Intents currently buffered awaiting circuit breaker close",
		}),

		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_stream_reconnects_total",
			Help: "Quote stream reconnection attempts",
		}),
		SamplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_samples_total",
			Help: "Quote samples received from the stream",
		}),

		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_session_transitions_total",
			Help: "Market session transitions (open, close)",
		}, []string{"type"}),
	}

	prometheus.MustRegister(
		m.ScansTotal,
		m.ScanDur,
		m.SymbolErrors,
		m.FetchesTotal,
		m.FetchThrottles,
		m.GateWaitDur,
		m.SignalsTotal,
		m.AlertsSuppressed,
		m.IntentsDelivered,
		m.DeliveryFailures,
		m.JournalWriteDur,
		m.RedisPublishDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisBufferedPublishes,
		m.RedisBufferPending,
		m.StreamReconnects,
		m.SamplesTotal,
		m.MarketState,
		m.SessionTransitions,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	StreamConnected bool      `json:"stream_connected"`
	LastSampleTime  time.Time `json:"last_sample_time"`
	RedisConnected  bool      `json:"redis_connected"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	SessionLoggedIn bool      `json:"session_logged_in"`
	WatchlistSize   int       `json:"watchlist_size"`
	LastScanAt      time.Time `json:"last_scan_at"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetStreamConnected(v bool) {
	h.mu.Lock()
	h.StreamConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastSampleTime(t time.Time) {
	h.mu.Lock()
	h.LastSampleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSessionLoggedIn(v bool) {
	h.mu.Lock()
	h.SessionLoggedIn = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetWatchlistSize(n int) {
	h.mu.Lock()
	h.WatchlistSize = n
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastScanAt(t time.Time) {
	h.mu.Lock()
	h.LastScanAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.SessionLoggedIn || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	sampleAge := ""
	if !h.LastSampleTime.IsZero() {
		sampleAge = time.Since(h.LastSampleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		StreamConnected bool    `json:"stream_connected"`
		LastSampleTime  string  `json:"last_sample_time"`
		SampleAge       string  `json:"sample_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		SessionLoggedIn bool    `json:"session_logged_in"`
		WatchlistSize   int     `json:"watchlist_size"`
		LastScanAt      string  `json:"last_scan_at"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		StreamConnected: h.StreamConnected,
		LastSampleTime:  h.LastSampleTime.Format(time.RFC3339),
		SampleAge:       sampleAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		SessionLoggedIn: h.SessionLoggedIn,
		WatchlistSize:   h.WatchlistSize,
		LastScanAt:      h.LastScanAt.Format(time.RFC3339),
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
