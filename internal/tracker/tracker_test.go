package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const productURL = "https://www.amazon.in/dp/B09B8V1LZ3"

var scrapedAt = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func scraped(price *float64) models.ScrapeResult {
	p := models.NewProduct(models.SiteAmazon, "INR")
	p.URL = productURL
	p.Title = "Echo Dot"
	p.Price = price
	p.ScrapedAt = scrapedAt
	p.Availability = models.InStock
	return models.Success(p)
}

func price(v float64) *float64 { return &v }

func existingWith(prices ...float64) *models.TrackedProduct {
	p := models.NewTrackedProduct(scraped(price(prices[len(prices)-1])).Product)
	p.Subscribers = []string{"a@example.com"}
	for i, v := range prices {
		p.PriceHistory = append(p.PriceHistory, models.PricePoint{
			Price:      v,
			ObservedAt: scrapedAt.Add(-time.Duration(len(prices)-i) * time.Hour),
		})
	}
	return p
}

func TestTrackNewProduct(t *testing.T) {
	ctx := context.Background()
	scraper := new(MockScraper)
	store := new(MockStore)
	tr := New(scraper, store, quietLogger())

	scraper.On("ScrapeProduct", ctx, "https://www.amazon.in/Echo/dp/B09B8V1LZ3?th=1").Return(scraped(price(500)))
	store.On("RecordScrape", ctx, productURL).Return(nil, nil)

	outcome, err := tr.Track(ctx, "https://www.amazon.in/Echo/dp/B09B8V1LZ3?th=1")
	require.NoError(t, err)

	assert.False(t, outcome.IsPriceDrop)
	require.NotNil(t, outcome.Product)
	assert.NotEqual(t, uuid.Nil, outcome.Product.ID)
	assert.Equal(t, []models.PricePoint{{Price: 500, ObservedAt: scrapedAt}}, outcome.Product.PriceHistory)
	assert.Equal(t, 500.0, *outcome.Product.LowestPrice)
	assert.Equal(t, 500.0, *outcome.Product.HighestPrice)
	assert.Equal(t, 500.0, *outcome.Product.AveragePrice)
	assert.Empty(t, store.Events())
}

func TestTrackPriceDropWritesEvent(t *testing.T) {
	ctx := context.Background()
	scraper := new(MockScraper)
	store := new(MockStore)
	tr := New(scraper, store, quietLogger())

	scraper.On("ScrapeProduct", ctx, productURL).Return(scraped(price(450)))
	store.On("RecordScrape", ctx, productURL).Return(existingWith(500), nil)

	outcome, err := tr.Track(ctx, productURL)
	require.NoError(t, err)

	assert.True(t, outcome.IsPriceDrop)
	assert.Len(t, outcome.Product.PriceHistory, 2)
	assert.Equal(t, 450.0, *outcome.Product.LowestPrice)
	assert.Equal(t, 500.0, *outcome.Product.HighestPrice)
	assert.Equal(t, 475.0, *outcome.Product.AveragePrice)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, database.EventPriceDrop, events[0].EventType)

	var payload database.PriceDropPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, 500.0, payload.PreviousPrice)
	assert.Equal(t, 450.0, payload.CurrentPrice)
	assert.Equal(t, []string{"a@example.com"}, payload.Subscribers)
}

func TestTrackRiseAfterDropHasNoEvent(t *testing.T) {
	ctx := context.Background()
	scraper := new(MockScraper)
	store := new(MockStore)
	tr := New(scraper, store, quietLogger())

	scraper.On("ScrapeProduct", ctx, productURL).Return(scraped(price(600)))
	store.On("RecordScrape", ctx, productURL).Return(existingWith(500, 450), nil)

	outcome, err := tr.Track(ctx, productURL)
	require.NoError(t, err)

	assert.False(t, outcome.IsPriceDrop)
	assert.Equal(t, 450.0, *outcome.Product.LowestPrice)
	assert.Equal(t, 600.0, *outcome.Product.HighestPrice)
	assert.Empty(t, store.Events())
}

func TestTrackMissingPriceLeavesHistory(t *testing.T) {
	ctx := context.Background()
	scraper := new(MockScraper)
	store := new(MockStore)
	tr := New(scraper, store, quietLogger())

	existing := existingWith(500)
	scraper.On("ScrapeProduct", ctx, productURL).Return(scraped(nil))
	store.On("RecordScrape", ctx, productURL).Return(existing, nil)

	outcome, err := tr.Track(ctx, productURL)
	require.NoError(t, err)

	assert.False(t, outcome.IsPriceDrop)
	assert.Len(t, outcome.Product.PriceHistory, 1)
	require.NotNil(t, outcome.Product.CurrentPrice)
	assert.Equal(t, 500.0, *outcome.Product.CurrentPrice)
	assert.Empty(t, store.Events())
}

func TestTrackFailureIsReturnedUnchanged(t *testing.T) {
	ctx := context.Background()
	scraper := new(MockScraper)
	store := new(MockStore)
	tr := New(scraper, store, quietLogger())

	failure := models.Failure(models.NewUnsupportedSite("ebay is not supported! Please check back later."))
	scraper.On("ScrapeProduct", ctx, "https://www.ebay.com/itm/1").Return(failure)

	outcome, err := tr.Track(ctx, "https://www.ebay.com/itm/1")
	require.NoError(t, err)
	assert.Equal(t, failure, outcome.Result)
	assert.Nil(t, outcome.Product)
	store.AssertNotCalled(t, "RecordScrape", mock.Anything, mock.Anything)
}

func TestTrackStorageError(t *testing.T) {
	ctx := context.Background()
	scraper := new(MockScraper)
	store := new(MockStore)
	tr := New(scraper, store, quietLogger())

	scraper.On("ScrapeProduct", ctx, productURL).Return(scraped(price(500)))
	store.On("RecordScrape", ctx, productURL).Return(nil, errors.New("connection refused"))

	_, err := tr.Track(ctx, productURL)
	assert.ErrorContains(t, err, "connection refused")
}

func TestAddSubscriber(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	tr := New(new(MockScraper), store, quietLogger())
	id := uuid.New()

	p := &models.TrackedProduct{ID: id, Subscribers: []string{"a@example.com"}}
	store.On("AddSubscriber", ctx, id, "a@example.com").Return(p, true, nil)

	got, added, err := tr.AddSubscriber(ctx, id, "  Jane <A@Example.com> ")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, p, got)
	store.AssertExpectations(t)
}

func TestAddSubscriberRejectsInvalidEmail(t *testing.T) {
	store := new(MockStore)
	tr := New(new(MockScraper), store, quietLogger())

	for _, email := range []string{"", "not-an-email", "a@"} {
		_, _, err := tr.AddSubscriber(context.Background(), uuid.New(), email)
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
	store.AssertNotCalled(t, "AddSubscriber", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddSubscriberUnknownProduct(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	tr := New(new(MockScraper), store, quietLogger())
	id := uuid.New()

	store.On("AddSubscriber", ctx, id, "a@example.com").Return(nil, false, database.ErrNotFound)

	_, _, err := tr.AddSubscriber(ctx, id, "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

type countingDrops struct{ n int }

func (c *countingDrops) ObservePriceDrop() { c.n++ }

func TestTrackReportsDropToRecorder(t *testing.T) {
	ctx := context.Background()
	scraper := new(MockScraper)
	store := new(MockStore)
	drops := &countingDrops{}
	tr := New(scraper, store, quietLogger(), WithDropRecorder(drops))

	scraper.On("ScrapeProduct", ctx, productURL).Return(scraped(price(450))).Once()
	scraper.On("ScrapeProduct", ctx, productURL).Return(scraped(price(700))).Once()
	store.On("RecordScrape", ctx, productURL).Return(existingWith(500), nil)

	_, err := tr.Track(ctx, productURL)
	require.NoError(t, err)
	_, err = tr.Track(ctx, productURL)
	require.NoError(t, err)

	assert.Equal(t, 1, drops.n)
}
