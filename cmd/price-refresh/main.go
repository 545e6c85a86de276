package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/price-tracker/internal/app"
	"github.com/maltedev/price-tracker/internal/config"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/logging"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/tracker"
)

// price-refresh runs one refresh pass over the tracked products and exits.
// Price drop events are left in the outbox for the server's relay.
func main() {
	var (
		site    = flag.String("site", "", "Only refresh products of this site")
		workers = flag.Int("workers", 0, "Concurrent scrapes (overrides REFRESH_WORKERS)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Refresh.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	refreshCfg := app.RefreshConfig(cfg)
	if *site != "" {
		refreshCfg.Site = models.Site(*site)
		if !refreshCfg.Site.Valid() {
			logger.Error("unknown site", "site", *site)
			os.Exit(2)
		}
	}

	os.Exit(run(cfg, refreshCfg, logger))
}

func run(cfg *config.Config, refreshCfg tracker.RefreshConfig, logger *slog.Logger) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine, err := app.NewEngine(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize scraper", "error", err)
		return 1
	}
	defer engine.Close()

	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer db.Close()

	t := tracker.New(engine.Scraper, database.NewStore(db), logger)
	stats, err := tracker.NewRefresher(t, refreshCfg, logger).RefreshAll(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(stats); encErr != nil {
		logger.Error("failed to encode stats", "error", encErr)
	}

	if err != nil {
		logger.Error("refresh aborted", "error", err)
		return 1
	}
	return 0
}
