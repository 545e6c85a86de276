package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/history"
	"github.com/maltedev/price-tracker/internal/models"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrNotFound     = database.ErrNotFound
)

type ProductScraper interface {
	ScrapeProduct(ctx context.Context, rawURL string) models.ScrapeResult
}

type Store interface {
	RecordScrape(ctx context.Context, url string, fn database.ApplyFunc) (*models.TrackedProduct, error)
	AddSubscriber(ctx context.Context, id uuid.UUID, email string) (*models.TrackedProduct, bool, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.TrackedProduct, error)
	ListProducts(ctx context.Context, filter database.ListFilter) ([]*models.TrackedProduct, error)
}

// Outcome of one Track call. Product is nil when the scrape failed; Result
// then carries the failure unchanged.
type Outcome struct {
	Result      models.ScrapeResult    `json:"result"`
	Product     *models.TrackedProduct `json:"product,omitempty"`
	IsPriceDrop bool                   `json:"is_price_drop"`
}

type DropRecorder interface {
	ObservePriceDrop()
}

// Tracker scrapes products and keeps their stored price history current.
type Tracker struct {
	scraper ProductScraper
	store   Store
	drops   DropRecorder
	logger  *slog.Logger
}

type Option func(*Tracker)

func WithDropRecorder(r DropRecorder) Option {
	return func(t *Tracker) {
		t.drops = r
	}
}

func New(scraper ProductScraper, store Store, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		scraper: scraper,
		store:   store,
		logger:  logger.With("component", "tracker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track scrapes rawURL and folds the result into the stored record. A price
// drop against the previous observation writes a PRICE_DROP event in the same
// transaction. The returned error covers storage only.
func (t *Tracker) Track(ctx context.Context, rawURL string) (*Outcome, error) {
	result := t.scraper.ScrapeProduct(ctx, rawURL)
	if !result.Success {
		return &Outcome{Result: result}, nil
	}
	product := result.Product

	drop := false
	saved, err := t.store.RecordScrape(ctx, product.URL, func(existing *models.TrackedProduct) (*models.TrackedProduct, []*database.OutboxEvent, error) {
		drop = false
		tracked := existing
		if tracked == nil {
			tracked = models.NewTrackedProduct(product)
		} else {
			previous := tracked.CurrentPrice
			tracked.ApplyScrape(product)
			if product.Price == nil {
				tracked.CurrentPrice = previous
			}
		}

		if product.Price == nil {
			return tracked, nil, nil
		}

		var last float64
		if n := len(tracked.PriceHistory); n > 0 {
			last = tracked.PriceHistory[n-1].Price
		}
		merged, err := history.Merge(tracked.PriceHistory, *product.Price, product.ScrapedAt)
		if err != nil {
			return nil, nil, err
		}
		tracked.PriceHistory = merged.History
		tracked.LowestPrice = &merged.Lowest
		tracked.HighestPrice = &merged.Highest
		tracked.AveragePrice = &merged.Average

		if !merged.IsPriceDrop {
			return tracked, nil, nil
		}
		drop = true
		event, err := database.NewPriceDropEvent(tracked, last, product.ScrapedAt)
		if err != nil {
			return nil, nil, err
		}
		return tracked, []*database.OutboxEvent{event}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", product.URL, err)
	}

	if drop {
		if t.drops != nil {
			t.drops.ObservePriceDrop()
		}
		t.logger.Info("price drop detected",
			"product_id", saved.ID,
			"url", saved.URL,
			"price", *saved.CurrentPrice,
			"subscribers", len(saved.Subscribers))
	}
	return &Outcome{Result: result, Product: saved, IsPriceDrop: drop}, nil
}

// AddSubscriber registers email for price drop alerts on a product. Adding
// an address twice is a no-op reported through the bool.
func (t *Tracker) AddSubscriber(ctx context.Context, id uuid.UUID, email string) (*models.TrackedProduct, bool, error) {
	address, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	normalized := strings.ToLower(address.Address)

	p, added, err := t.store.AddSubscriber(ctx, id, normalized)
	if err != nil {
		return nil, false, err
	}
	if added {
		t.logger.Info("subscriber added", "product_id", id, "subscribers", len(p.Subscribers))
	}
	return p, added, nil
}

func (t *Tracker) Product(ctx context.Context, id uuid.UUID) (*models.TrackedProduct, error) {
	return t.store.GetProduct(ctx, id)
}

// Products lists tracked products. Passing a product id as ExcludeID together
// with its site yields similar products.
func (t *Tracker) Products(ctx context.Context, filter database.ListFilter) ([]*models.TrackedProduct, error) {
	return t.store.ListProducts(ctx, filter)
}
