package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-tracker/internal/fetcher"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/parser"
	"github.com/maltedev/price-tracker/internal/proxy"
)

var (
	ErrInvalidURL = errors.New("invalid product URL")
	ErrBlocked    = errors.New("blocked by anti-bot page")
)

const defaultTimeout = 30 * time.Second

// SessionProvider hands out a fresh proxy session per attempt.
type SessionProvider interface {
	NewSession() proxy.Session
}

// Recorder observes scrape outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveFetch(site models.Site, elapsed time.Duration, err error)
	ObserveResult(site models.Site, result models.ScrapeResult)
}

type Options struct {
	Timeout  time.Duration
	Registry *parser.Registry
	Recorder Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// Scraper turns product URLs into records. It holds no per-call state and is
// safe for concurrent use.
type Scraper struct {
	fetcher  fetcher.Fetcher
	sessions SessionProvider
	registry *parser.Registry
	recorder Recorder
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func New(f fetcher.Fetcher, sessions SessionProvider, opts Options) *Scraper {
	s := &Scraper{
		fetcher:  f,
		sessions: sessions,
		registry: opts.Registry,
		recorder: opts.Recorder,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.registry == nil {
		s.registry = parser.DefaultRegistry()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.logger = s.logger.With("component", "scraper")
	return s
}

// ScrapeProduct fetches and extracts the full product record. Unsupported
// URLs fail without any network call.
func (s *Scraper) ScrapeProduct(ctx context.Context, rawURL string) (result models.ScrapeResult) {
	site, cerr := Classify(rawURL)
	if cerr != nil {
		s.logger.Info("rejected url", "url", rawURL, "kind", cerr.Kind, "message", cerr.Message)
		return models.Failure(cerr)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("extraction panicked", "site", site, "url", rawURL, "panic", r)
			result = models.Failure(models.NewParseFailure(fmt.Sprintf("unexpected extraction failure: %v", r)))
		}
		s.recorder.ObserveResult(site, result)
	}()

	target, doc, strategy, ferr := s.load(ctx, site, rawURL)
	if ferr != nil {
		return models.Failure(ferr)
	}

	product, err := strategy.Extract(doc)
	if err != nil {
		s.logger.Warn("extraction failed", "site", site, "url", rawURL, "error", err)
		return models.Failure(models.NewParseFailure(err.Error()))
	}

	product.URL = target
	product.ScrapedAt = s.now()

	s.logger.Info("scraped product", "site", site, "url", target, "title", product.Title)
	return models.Success(product)
}

// ScrapePrice resolves only the current price. Any failure yields nil.
func (s *Scraper) ScrapePrice(ctx context.Context, rawURL string) (price *float64) {
	site, cerr := Classify(rawURL)
	if cerr != nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("price extraction panicked", "site", site, "url", rawURL, "panic", r)
			price = nil
		}
	}()

	_, doc, strategy, ferr := s.load(ctx, site, rawURL)
	if ferr != nil {
		s.logger.Warn("price scrape failed", "site", site, "url", rawURL, "kind", ferr.Kind, "message", ferr.Message)
		return nil
	}

	price, err := strategy.ExtractPrice(doc)
	if err != nil {
		s.logger.Warn("price extraction failed", "site", site, "url", rawURL, "error", err)
		return nil
	}
	return price
}

// load fetches and parses the page and rejects block pages. It returns the
// canonical URL alongside the document.
func (s *Scraper) load(ctx context.Context, site models.Site, rawURL string) (string, *goquery.Document, parser.Strategy, *models.Error) {
	strategy, err := s.registry.Get(site)
	if err != nil {
		return "", nil, nil, models.NewUnsupportedSite(err.Error())
	}

	u, err := parseProductURL(rawURL)
	if err != nil {
		return "", nil, nil, models.NewInvalidURL()
	}
	target, err := CanonicalURL(rawURL)
	if err != nil {
		return "", nil, nil, models.NewInvalidURL()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session := s.sessions.NewSession()
	start := time.Now()
	html, err := s.fetcher.Fetch(ctx, u.String(), session)
	s.recorder.ObserveFetch(site, time.Since(start), err)
	if err != nil {
		return "", nil, nil, transportFailure(err)
	}

	if strings.TrimSpace(html) == "" {
		return "", nil, nil, models.NewParseFailure(parser.ErrMissingDocument.Error())
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, nil, models.NewParseFailure(fmt.Sprintf("failed to parse HTML: %v", err))
	}
	if marker, blocked := detectBlock(doc); blocked {
		s.logger.Warn("detected captcha/block", "site", site, "url", rawURL, "marker", marker, "session", session.ID)
		return "", nil, nil, models.NewParseFailure(fmt.Sprintf("%v: %s", ErrBlocked, marker))
	}
	return target, doc, strategy, nil
}

func transportFailure(err error) *models.Error {
	var te *fetcher.TransportError
	if errors.As(err, &te) {
		if te.Timeout() {
			return models.NewTransportFailure("request timed out", 0)
		}
		return models.NewTransportFailure(te.Error(), te.Status)
	}
	return models.NewTransportFailure(err.Error(), 0)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(models.Site, time.Duration, error) {}
func (nopRecorder) ObserveResult(models.Site, models.ScrapeResult) {}
