// Package app builds the long-lived components the binaries share from a
// loaded configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/price-tracker/internal/browser"
	"github.com/maltedev/price-tracker/internal/config"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/fetcher"
	"github.com/maltedev/price-tracker/internal/proxy"
	"github.com/maltedev/price-tracker/internal/scraper"
	"github.com/maltedev/price-tracker/internal/tracker"
)

// Engine is a scraper plus the browser backing it, if any.
type Engine struct {
	Scraper *scraper.Scraper
	browser *browser.Browser
}

// NewEngine starts a browser only when the configured fetcher needs one.
// recorder may be nil.
func NewEngine(cfg *config.Config, logger *slog.Logger, recorder scraper.Recorder) (*Engine, error) {
	var b *browser.Browser
	if cfg.Scraper.Fetcher == fetcher.KindBrowser {
		var err error
		b, err = browser.New(browserOptions(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
	}

	f, err := fetcher.New(cfg.Scraper.Fetcher, fetcherOptions(cfg), b)
	if err != nil {
		if b != nil {
			b.Close()
		}
		return nil, err
	}

	s := scraper.New(f, proxy.NewProvider(cfg.Proxy), scraper.Options{
		Timeout:  cfg.Scraper.Timeout,
		Recorder: recorder,
		Logger:   logger,
	})
	logger.Info("scraper ready", "fetcher", cfg.Scraper.Fetcher, "proxy", cfg.Proxy.Username != "")
	return &Engine{Scraper: s, browser: b}, nil
}

func (e *Engine) Close() error {
	if e.browser == nil {
		return nil
	}
	return e.browser.Close()
}

// OpenDatabase connects and applies the schema.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(ctx, DatabaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func DatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	}
}

func RefreshConfig(cfg *config.Config) tracker.RefreshConfig {
	return tracker.RefreshConfig{
		Workers:    cfg.Refresh.Workers,
		MinDelay:   cfg.Refresh.RateLimitMin,
		MaxDelay:   cfg.Refresh.RateLimitMax,
		MaxRetries: cfg.Refresh.MaxRetries,
	}
}

func RelayConfig(cfg *config.Config, recorder database.RelayRecorder) database.RelayConfig {
	return database.RelayConfig{
		PollInterval: cfg.Relay.PollInterval,
		BatchSize:    cfg.Relay.BatchSize,
		MaxStreamLen: cfg.Redis.MaxStreamLen,
		Recorder:     recorder,
	}
}

func fetcherOptions(cfg *config.Config) fetcher.Options {
	return fetcher.Options{
		UserAgent:      cfg.Scraper.UserAgent,
		AcceptLanguage: cfg.Scraper.AcceptLanguage,
		MaxBodySize:    cfg.Scraper.MaxBodySize,
		Timeout:        cfg.Scraper.Timeout,
	}
}

func browserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Scraper.Timeout
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	if cfg.Scraper.UserAgent != "" {
		opts.UserAgent = cfg.Scraper.UserAgent
	}
	if cfg.Scraper.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.Scraper.AcceptLanguage
	}
	return opts
}
