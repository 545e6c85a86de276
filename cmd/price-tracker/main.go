package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/price-tracker/internal/api"
	"github.com/maltedev/price-tracker/internal/app"
	"github.com/maltedev/price-tracker/internal/config"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/logging"
	"github.com/maltedev/price-tracker/internal/metrics"
	"github.com/maltedev/price-tracker/internal/tracker"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.NewRegistry()

	engine, err := app.NewEngine(cfg, logger, reg)
	if err != nil {
		logger.Error("failed to initialize scraper", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := database.NewStore(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(store.Outbox(), redisClient, logger, app.RelayConfig(cfg, reg))
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	t := tracker.New(engine.Scraper, store, logger, tracker.WithDropRecorder(reg))
	refresher := tracker.NewRefresher(t, app.RefreshConfig(cfg), logger)
	go runRefresh(ctx, refresher, cfg.Refresh.Interval, logger)

	handlers := api.NewHandlers(engine.Scraper, t, store.Outbox(), logger)
	router := api.NewRouter(handlers, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
		Metrics:        reg.Handler(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// runRefresh re-scrapes all tracked products every interval. A zero interval
// disables the loop.
func runRefresh(ctx context.Context, r *tracker.Refresher, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		logger.Info("scheduled refresh disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RefreshAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("refresh failed", "error", err)
			}
		}
	}
}
