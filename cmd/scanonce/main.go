// Command scanonce runs a single scan pass and exits. It is also the
// maintenance tool for the watchlist file:
//
//	scanonce -add NVDA          add a symbol and exit
//	scanonce -remove NVDA       remove a symbol and exit
//	scanonce -list              print the watchlist and exit
//	scanonce                    log in and run one pass
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stock-scannerv1/config"
	"stock-scannerv1/internal/alertgate"
	"stock-scannerv1/internal/fetchgate"
	"stock-scannerv1/internal/indicator"
	"stock-scannerv1/internal/marketdata"
	"stock-scannerv1/internal/model"
	"stock-scannerv1/internal/momentum"
	"stock-scannerv1/internal/notification"
	"stock-scannerv1/internal/scanner"
	"stock-scannerv1/internal/watchlist"
	"stock-scannerv1/pkg/quoteapi"
)

func main() {
	log.SetFlags(log.LstdFlags)

	addSym := flag.String("add", "", "add a symbol to the watchlist and exit")
	removeSym := flag.String("remove", "", "remove a symbol from the watchlist and exit")
	listOnly := flag.Bool("list", false, "print the watchlist and exit")
	force := flag.Bool("force", false, "skip the data source lookup on -add")
	mode := flag.String("mode", "", "override SCAN_MODE (cross or momentum)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	wl, err := watchlist.NewManager(watchlist.NewFileStore(cfg.WatchlistPath))
	if err != nil {
		log.Fatalf("watchlist load failed: %v", err)
	}

	switch {
	case *addSym != "":
		if !*force {
			if err := verifySymbol(cfg, *addSym); err != nil {
				log.Fatalf("verify %q: %v (use -force to skip the lookup)", *addSym, err)
			}
		}
		sym, added, err := wl.Add(*addSym)
		if err != nil {
			log.Fatalf("add %q: %v", *addSym, err)
		}
		if added {
			fmt.Printf("added %s (%d symbols)\n", sym, wl.Len())
		} else {
			fmt.Printf("%s already on the watchlist\n", sym)
		}
		return
	case *removeSym != "":
		if err := wl.Remove(*removeSym); err != nil {
			log.Fatalf("remove %q: %v", *removeSym, err)
		}
		fmt.Printf("removed %s (%d symbols)\n", *removeSym, wl.Len())
		return
	case *listOnly:
		for i, sym := range wl.List() {
			fmt.Printf("%3d  %s\n", i+1, sym)
		}
		return
	}

	if wl.Len() == 0 {
		log.Fatal("watchlist is empty, add symbols with -add first")
	}

	scanMode := cfg.ScanMode
	if *mode != "" {
		scanMode = *mode
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	client := quoteapi.New(quoteapi.Config{
		APIKey:  cfg.ProviderAPIKey,
		RootURL: cfg.ProviderRootURL,
	})
	profile, err := client.Login(ctx, cfg.ProviderClientCode, cfg.ProviderPassword, cfg.ProviderTOTPSecret)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	log.Printf("logged in as %s", profile.ClientCode)
	defer client.Logout(context.Background())

	source := marketdata.NewSource(client, nil)

	var strat scanner.Strategy
	switch scanMode {
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

	alerts := alertgate.New(alertgate.Config{
		Cooldown:   cfg.AlertCooldown,
		DailyQuota: cfg.AlertDailyQuota,
		Zone:       cfg.AlertLocation(),
	})

	orch := scanner.New(scanner.Config{
		BatchSize:  cfg.BatchSize,
		ItemDelay:  cfg.ItemDelay,
		BatchDelay: cfg.BatchDelay,
	}, source, fetchgate.NewBackoff(fetchgate.DefaultBackoffConfig()), alerts, notification.NewLogNotifier(), strat)

	report, err := orch.Scan(ctx, wl.List())
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	printReport(report)
	if report.Errors > 0 {
		os.Exit(1)
	}
}

func printReport(report scanner.Report) {
	fmt.Printf("scanned %d symbols in %v: %d signals, %d delivered, %d errors\n",
		report.Symbols, report.FinishedAt.Sub(report.StartedAt).Truncate(time.Millisecond),
		report.Signals, report.Delivered, report.Errors)
}

// verifySymbol confirms the symbol is known to the data source before it
// enters the watchlist.
func verifySymbol(cfg *config.Config, raw string) error {
	sym, err := model.ParseSymbol(raw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := quoteapi.New(quoteapi.Config{
		APIKey:  cfg.ProviderAPIKey,
		RootURL: cfg.ProviderRootURL,
	})
	if _, err := client.Login(ctx, cfg.ProviderClientCode, cfg.ProviderPassword, cfg.ProviderTOTPSecret); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer client.Logout(context.Background())

	matches, err := client.Search(ctx, string(sym))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if strings.EqualFold(m.Symbol, string(sym)) {
			return nil
		}
	}
	return fmt.Errorf("%s not known to the data source", sym)
}
