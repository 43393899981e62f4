package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"StagePlanner/internal/collector"
	"StagePlanner/internal/config"
	"StagePlanner/internal/notifier"
	"StagePlanner/internal/recorder"
	"StagePlanner/internal/scheduler"
	"StagePlanner/internal/tracker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	cfgPath := flag.String("config", defaultCfg, "path to the YAML config")
	once := flag.Bool("once", false, "evaluate the watchlist once, print the plans and exit")
	exportDir := flag.String("export", "", "with -once, write one CSV per plan into this directory")
	flag.Parse()

	log.Println("[INFO] StagePlanner starting...")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	if len(cfg.Watchlist) == 0 {
		log.Fatalf("[FATAL] watchlist is empty")
	}

	// Init fetchers
	yahoo := collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.YahooRatePerSec)
	var foreign collector.Fetcher = yahoo
	if cfg.DataSource.AlpacaKey != "" {
		foreign = collector.NewAlpacaFetcher(cfg.DataSource.AlpacaKey, cfg.DataSource.AlpacaSecret)
	}
	log.Printf("[INFO] data sources: domestic=%s foreign=%s", yahoo.Name(), foreign.Name())
	col := collector.NewCollector(yahoo, foreign, yahoo, cfg.DataSource.FXSymbol)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		runOnce(ctx, col, cfg, *exportDir)
		return
	}

	if err := cfg.ValidateNotifier(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	tm, err := tracker.NewManager(cfg.Tracker.StateFile)
	if err != nil {
		log.Fatalf("[FATAL] init tracker: %v", err)
	}

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	rec := openRecorder(ctx, cfg)
	defer rec.Close()

	sched := scheduler.NewScheduler(ctx, col, tm, tn, rec, cfg.Watchlist, cfg.Workers)
	if err := sched.RegisterAll(cfg.Schedule.DailyCron, cfg.Schedule.WeeklyCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)
	log.Println("[INFO] Telegram polling started")

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing daily check now")
		go sched.RunDailyNow()
	}

	log.Printf("[INFO] StagePlanner is running with %d symbols. Press Ctrl+C to stop.", len(cfg.Watchlist))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] StagePlanner stopped")
}

// openRecorder prefers DynamoDB when a table is configured, then SQLite, then noop.
func openRecorder(ctx context.Context, cfg *config.Config) recorder.Recorder {
	if cfg.Database.DynamoTable != "" {
		dr, err := recorder.NewDynamoRecorder(ctx, cfg.Database.DynamoTable, cfg.Database.DynamoRegion)
		if err == nil {
			return dr
		}
		log.Printf("[WARN] init dynamodb recorder failed, trying sqlite: %v", err)
	}
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err == nil {
			return sr
		}
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
	}
	return recorder.NewNoopRecorder()
}

func runOnce(ctx context.Context, col *collector.Collector, cfg *config.Config, exportDir string) {
	sched := scheduler.NewScheduler(ctx, col, nil, nil, recorder.NewNoopRecorder(), cfg.Watchlist, cfg.Workers)
	console := notifier.NewConsole()

	failed := 0
	for _, o := range sched.EvaluateWatchlist(ctx) {
		if o.Err != nil {
			console.PrintError(o.Symbol, o.Err)
			failed++
			continue
		}
		console.PrintDecision(o.Decision)
		if exportDir != "" && o.Decision.Plan != nil {
			path, err := notifier.ExportPlanCSV(exportDir, o.Decision.Plan)
			if err != nil {
				log.Printf("[ERROR] export %s: %v", o.Symbol, err)
				continue
			}
			log.Printf("[INFO] exported %s", path)
		}
	}
	if failed > 0 {
		log.Printf("[WARN] %d of %d symbols failed", failed, len(cfg.Watchlist))
		os.Exit(1)
	}
}
