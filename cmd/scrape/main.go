package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/price-tracker/internal/app"
	"github.com/maltedev/price-tracker/internal/config"
	"github.com/maltedev/price-tracker/internal/logging"
)

func main() {
	var (
		url       = flag.String("url", "", "Product URL to scrape")
		priceOnly = flag.Bool("price", false, "Only resolve the current price")
		kind      = flag.String("fetcher", "", "Fetcher to use: http, colly, browser (overrides SCRAPER_FETCHER)")
	)
	flag.Parse()

	if *url == "" && flag.NArg() > 0 {
		*url = flag.Arg(0)
	}
	if *url == "" {
		fmt.Fprintln(os.Stderr, "usage: scrape [-price] [-fetcher kind] -url <product-url>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *kind != "" {
		cfg.Scraper.Fetcher = *kind
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Diagnostics go to stderr so stdout stays machine readable.
	logger := logging.New(os.Stderr, cfg.Logging.Level, "text")

	os.Exit(run(cfg, *url, *priceOnly, logger))
}

func run(cfg *config.Config, url string, priceOnly bool, logger *slog.Logger) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine, err := app.NewEngine(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize scraper", "error", err)
		return 1
	}
	defer engine.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if priceOnly {
		price := engine.Scraper.ScrapePrice(ctx, url)
		if err := enc.Encode(map[string]interface{}{"url": url, "price": price}); err != nil {
			logger.Error("failed to encode output", "error", err)
		}
		if price == nil {
			return 1
		}
		return 0
	}

	result := engine.Scraper.ScrapeProduct(ctx, url)
	if err := enc.Encode(result); err != nil {
		logger.Error("failed to encode output", "error", err)
	}
	if !result.Success {
		return 1
	}
	return 0
}
