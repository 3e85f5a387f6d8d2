package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stock-scannerv1/config"
	"stock-scannerv1/internal/alertgate"
	"stock-scannerv1/internal/fetchgate"
	"stock-scannerv1/internal/indicator"
	"stock-scannerv1/internal/logger"
	"stock-scannerv1/internal/marketdata"
	"stock-scannerv1/internal/markethours"
	"stock-scannerv1/internal/metrics"
	"stock-scannerv1/internal/model"
	"stock-scannerv1/internal/momentum"
	"stock-scannerv1/internal/notification"
	"stock-scannerv1/internal/scanner"
	redisstore "stock-scannerv1/internal/store/redis"
	sqlitestore "stock-scannerv1/internal/store/sqlite"
	"stock-scannerv1/internal/watchlist"
	"stock-scannerv1/pkg/quoteapi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	slg := logger.Init("scanner", slog.LevelInfo)
	log.Println("[scanner] starting...")

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// SIGHUP forces a scan outside the periodic schedule.
	rescanCh := make(chan os.Signal, 1)
	signal.Notify(rescanCh, syscall.SIGHUP)

	// ---- SQLite journal ----
	os.MkdirAll("data", 0o755)
	journal, err := sqlitestore.New(sqlitestore.JournalConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[scanner] sqlite init failed: %v", err)
	}
	defer journal.Close()
	health.SetSQLiteOK(true)
	log.Println("[scanner] journal ready")

	// ---- Redis publisher (optional) ----
	var publisher *redisstore.BufferedPublisher
	rawPub, err := redisstore.New(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[scanner] WARNING: redis init failed: %v (continuing without redis)", err)
		health.SetRedisConnected(false)
	} else {
		health.SetRedisConnected(true)
		breaker := redisstore.NewCircuitBreaker(5, 10*time.Second)
		breaker.OnStateChange = func(from, to redisstore.State) {
			log.Printf("[scanner] redis circuit breaker: %s -> %s", from, to)
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
		}
		publisher = redisstore.NewBufferedPublisher(ctx, rawPub, breaker, 1000)
		publisher.OnBuffer = func() {
			prom.RedisBufferedPublishes.Inc()
			prom.RedisBufferPending.Set(float64(publisher.PendingCount()))
		}
		publisher.OnFlush = func(count int) {
			log.Printf("[scanner] redis recovered, %d buffered intents replayed", count)
			prom.RedisBufferPending.Set(float64(publisher.PendingCount()))
		}
		defer rawPub.Close()

		health.StartLivenessChecker(ctx, publisher.Underlying().Client(), journal.DB(), 15*time.Second)
	}

	// ---- Watchlist ----
	wl, err := watchlist.NewManager(watchlist.NewFileStore(cfg.WatchlistPath))
	if err != nil {
		log.Fatalf("[scanner] watchlist load failed: %v", err)
	}
	health.SetWatchlistSize(wl.Len())
	log.Printf("[scanner] watching %d symbols", wl.Len())

	// ---- Quote provider session ----
	client := quoteapi.New(quoteapi.Config{
		APIKey:  cfg.ProviderAPIKey,
		RootURL: cfg.ProviderRootURL,
	})

	relogin := make(chan struct{}, 1)
	client.SessionExpiryHook = func() {
		health.SetSessionLoggedIn(false)
		select {
		case relogin <- struct{}{}:
		default:
		}
	}

	loginLoop := func() {
		for {
			loginCtx, loginCancel := context.WithTimeout(ctx, 30*time.Second)
			profile, err := client.Login(loginCtx, cfg.ProviderClientCode, cfg.ProviderPassword, cfg.ProviderTOTPSecret)
			loginCancel()
			if err == nil {
				log.Printf("[scanner] session ready for %s", profile.ClientCode)
				health.SetSessionLoggedIn(true)
				return
			}
			log.Printf("[scanner] login failed: %v, retrying in 30s", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(30 * time.Second):
			}
		}
	}
	loginLoop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-relogin:
				log.Println("[scanner] session expired, refreshing")
				refreshCtx, refreshCancel := context.WithTimeout(ctx, 15*time.Second)
				err := client.RefreshSession(refreshCtx)
				refreshCancel()
				if err == nil {
					health.SetSessionLoggedIn(true)
					log.Println("[scanner] session refreshed")
					continue
				}
				log.Printf("[scanner] refresh failed: %v, performing full login", err)
				loginLoop()
			}
		}
	}()

	// ---- Live quote stream (optional) ----
	var stream *marketdata.Stream
	if cfg.ProviderStreamURL != "" {
		stream = marketdata.NewStream(marketdata.StreamConfig{
			URL:        cfg.ProviderStreamURL,
			APIKey:     cfg.ProviderAPIKey,
			ClientCode: client.ClientCode(),
			FeedToken:  client.FeedToken(),
			AuthToken:  client.AccessToken(),
		})
		stream.OnSample = func(s model.Sample) {
			prom.SamplesTotal.Inc()
			health.SetLastSampleTime(s.TS)
		}
		stream.OnReconnect = func() { prom.StreamReconnects.Inc() }
		stream.OnConnected = health.SetStreamConnected
		stream.Subscribe(wl.List())
		go stream.Run(ctx)
	}

	source := marketdata.NewSource(client, stream)

	// ---- Fetch gate ----
	var gate fetchgate.Gate
	if cfg.FetchRateLimit > 0 {
		gate = fetchgate.NewTokenBucket(cfg.FetchRateLimit)
		log.Printf("[scanner] fetch gate: token bucket, %d/min", cfg.FetchRateLimit)
	} else {
		gate = fetchgate.NewBackoff(fetchgate.DefaultBackoffConfig())
		log.Println("[scanner] fetch gate: adaptive backoff")
	}
	gate = &meteredGate{inner: gate, prom: prom}

	// ---- Alert gate, warm-started from the journal ----
	zone := cfg.AlertLocation()
	alerts := alertgate.New(alertgate.Config{
		Cooldown:   cfg.AlertCooldown,
		DailyQuota: cfg.AlertDailyQuota,
		Zone:       zone,
	})
	dayStart := startOfDay(time.Now().In(zone))
	if state, err := journal.LoadGateState(ctx, dayStart); err != nil {
		log.Printf("[scanner] WARNING: gate warm-start failed: %v", err)
	} else {
		for sym, st := range state {
			alerts.Seed(sym, st.LastAlertAt, st.CountSince)
		}
		log.Printf("[scanner] alert gate warm-started for %d symbols", len(state))
	}

	// ---- Notifier ----
	var backends []model.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[scanner] telegram notifications enabled")
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[scanner] webhook notifications enabled")
	}
	if len(backends) == 0 {
		log.Println("[scanner] no notification channel configured, logging alerts only")
		backends = append(backends, notification.NewLogNotifier())
	}
	notifier := notification.NewFanOut(backends...)

	// ---- Strategy ----
	var strat scanner.Strategy
	switch cfg.ScanMode {
	case "momentum":
		strat = scanner.NewMomentumStrategy(momentum.Thresholds{
			MaxPrice:     cfg.MaxPrice,
			MinPrice:     cfg.MinPrice,
			MinVolume:    cfg.MinVolume,
			MinChangePct: cfg.MinChangePct,
			MinRelVolume: cfg.MinRelVolume,
		})
	default:
		strat = scanner.NewCrossStrategy(indicator.DefaultParams)
	}
	log.Printf("[scanner] strategy: %s", strat.Name())

	// ---- Orchestrator ----
	orch := scanner.New(scanner.Config{
		BatchSize:  cfg.BatchSize,
		ItemDelay:  cfg.ItemDelay,
		BatchDelay: cfg.BatchDelay,
	}, source, gate, alerts, notifier, strat)

	orch.SetHooks(scanner.Hooks{
		OnSignal: func(sig model.Signal) {
			prom.SignalsTotal.WithLabelValues(string(sig.Kind)).Inc()
		},
		OnSuppressed: func(sym model.Symbol, reason string) {
			prom.AlertsSuppressed.WithLabelValues(reason).Inc()
		},
		OnDelivered: func(intent model.NotificationIntent, sig model.Signal) {
			prom.IntentsDelivered.Inc()
			start := time.Now()
			if err := journal.RecordAlert(ctx, intent, sig); err != nil {
				log.Printf("[scanner] journal write failed: %v", err)
			}
			prom.JournalWriteDur.Observe(time.Since(start).Seconds())

			if publisher != nil {
				pubStart := time.Now()
				if err := publisher.PublishIntent(intent); err != nil {
					log.Printf("[scanner] redis publish failed: %v", err)
				}
				prom.RedisPublishDur.Observe(time.Since(pubStart).Seconds())
			}
		},
		OnDeliveryFailed: func(sym model.Symbol, err error) {
			prom.DeliveryFailures.Inc()
			slg.Warn("alert delivery failed", logger.SymbolAttr(sym), logger.ErrAttr(err))
		},
		OnSymbolError: func(sym model.Symbol, err error) {
			prom.SymbolErrors.Inc()
			slg.Warn("symbol skipped", logger.SymbolAttr(sym), logger.ErrAttr(err))
		},
		OnScanDone: func(r scanner.Report) {
			prom.ScansTotal.Inc()
			prom.ScanDur.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
			health.SetLastScanAt(r.FinishedAt)
			if err := journal.RecordScanRun(ctx, sqlitestore.ScanRun{
				StartedAt:  r.StartedAt,
				FinishedAt: r.FinishedAt,
				Symbols:    r.Symbols,
				Signals:    r.Signals,
				Errors:     r.Errors,
			}); err != nil {
				log.Printf("[scanner] scan run journal failed: %v", err)
			}

			if publisher != nil {
				publisher.Underlying().PublishScanStatus(ctx, fmt.Sprintf(
					`{"symbols":%d,"signals":%d,"delivered":%d,"errors":%d,"finished_at":%q}`,
					r.Symbols, r.Signals, r.Delivered, r.Errors,
					r.FinishedAt.UTC().Format(time.RFC3339)))
			}

			scanCtx := logger.WithTraceID(ctx, logger.GenerateTraceID("scan", r.StartedAt))
			slg.Info("scan pass complete",
				append([]any{
					slog.Int("symbols", r.Symbols),
					slog.Int("signals", r.Signals),
					slog.Int("delivered", r.Delivered),
					slog.Int("errors", r.Errors),
					slog.Duration("took", r.FinishedAt.Sub(r.StartedAt)),
				}, logger.LogWithTrace(scanCtx)...)...)
		},
	})

	// ---- Market session gating ----
	session := markethours.USEquities()
	go trackMarketState(ctx, session, prom)

	go orch.RunPeriodic(ctx, cfg.ScanInterval, wl.List, session)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-rescanCh:
				log.Println("[scanner] SIGHUP received, forcing a scan")
				if _, err := orch.Scan(ctx, wl.List()); err != nil {
					log.Printf("[scanner] forced scan: %v", err)
				}
			}
		}
	}()

	log.Printf("[scanner] running: mode=%s interval=%v batch=%d cooldown=%v quota=%d",
		cfg.ScanMode, cfg.ScanInterval, cfg.BatchSize, cfg.AlertCooldown, cfg.AlertDailyQuota)
	log.Printf("[scanner] %s", session.StatusString(time.Now()))

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[scanner] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	if client.LoggedIn() {
		logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Logout(logoutCtx); err != nil {
			log.Printf("[scanner] logout failed: %v", err)
		}
		logoutCancel()
	}

	log.Println("[scanner] shutdown complete.")
}

// meteredGate instruments the fetch gate: every acquisition is one outbound
// fetch, and time spent blocked in Acquire is the pacing cost.
type meteredGate struct {
	inner fetchgate.Gate
	prom  *metrics.Metrics
}

func (g *meteredGate) Acquire(ctx context.Context) error {
	start := time.Now()
	err := g.inner.Acquire(ctx)
	g.prom.GateWaitDur.Observe(time.Since(start).Seconds())
	if err == nil {
		g.prom.FetchesTotal.Inc()
	}
	return err
}

func (g *meteredGate) ReportThrottled() {
	g.prom.FetchThrottles.Inc()
	g.inner.ReportThrottled()
}

func (g *meteredGate) Reset() { g.inner.Reset() }

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// trackMarketState mirrors the session state into the metrics gauge and
// counts open/close transitions.
func trackMarketState(ctx context.Context, session *markethours.Session, prom *metrics.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	wasOpen := session.IsOpen(time.Now())
	setGauge := func(open bool) {
		if open {
			prom.MarketState.Set(1)
		} else {
			prom.MarketState.Set(0)
		}
	}
	setGauge(wasOpen)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			open := session.IsOpen(time.Now())
			if open != wasOpen {
				transition := "close"
				if open {
					transition = "open"
				}
				prom.SessionTransitions.WithLabelValues(transition).Inc()
				log.Printf("[scanner] market %s", transition)
				wasOpen = open
			}
			setGauge(open)
		}
	}
}
