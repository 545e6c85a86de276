package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test")
	}

	port, _ := strconv.Atoi(envOr("TEST_DB_PORT", "5433"))
	db, err := New(context.Background(), Config{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     port,
		User:     envOr("TEST_DB_USER", "postgres"),
		Password: envOr("TEST_DB_PASSWORD", "postgres"),
		Database: envOr("TEST_DB_NAME", "price_tracker_test"),
		MaxConns: 5,
		MinConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(db.Close)
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func uniqueURL() string {
	return fmt.Sprintf("https://www.flipkart.com/item-%s/p/itm", uuid.NewString())
}

func TestStoreRecordScrapeIntegration(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	url := uniqueURL()

	first, err := store.RecordScrape(ctx, url, func(existing *models.TrackedProduct) (*models.TrackedProduct, []*OutboxEvent, error) {
		assert.Nil(t, existing)
		price := 500.0
		p := &models.TrackedProduct{
			URL:          url,
			Site:         models.SiteFlipkart,
			Title:        "Test Phone",
			CurrentPrice: &price,
			PriceHistory: []models.PricePoint{{Price: 500, ObservedAt: time.Now().UTC()}},
		}
		return p, nil, nil
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.ID)

	second, err := store.RecordScrape(ctx, url, func(existing *models.TrackedProduct) (*models.TrackedProduct, []*OutboxEvent, error) {
		require.NotNil(t, existing)
		assert.Equal(t, first.ID, existing.ID)
		require.Len(t, existing.PriceHistory, 1)

		price := 450.0
		existing.CurrentPrice = &price
		existing.PriceHistory = append(existing.PriceHistory, models.PricePoint{Price: 450, ObservedAt: time.Now().UTC()})
		event, err := NewPriceDropEvent(existing, 500, time.Now())
		return existing, []*OutboxEvent{event}, err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := store.GetProduct(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, stored.PriceHistory, 2)
	assert.Equal(t, 450.0, *stored.CurrentPrice)

	pending, err := store.Outbox().GetPending(ctx, 1000)
	require.NoError(t, err)
	found := false
	for _, e := range pending {
		if e.AggregateID == first.ID.String() && e.EventType == EventPriceDrop {
			found = true
		}
	}
	assert.True(t, found, "price drop event written with the upsert")
}

func TestStoreRecordScrapeConcurrentNewURLIntegration(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	url := uniqueURL()

	appendPrice := func(price float64) ApplyFunc {
		return func(existing *models.TrackedProduct) (*models.TrackedProduct, []*OutboxEvent, error) {
			p := existing
			if p == nil {
				p = &models.TrackedProduct{URL: url, Site: models.SiteFlipkart, Title: "Test Phone"}
			}
			p.CurrentPrice = &price
			p.PriceHistory = append(p.PriceHistory, models.PricePoint{Price: price, ObservedAt: time.Now().UTC()})
			return p, nil, nil
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, price := range []float64{500, 450} {
		wg.Add(1)
		go func(i int, price float64) {
			defer wg.Done()
			_, errs[i] = store.RecordScrape(ctx, url, appendPrice(price))
		}(i, price)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored, err := store.products.GetByURL(ctx, db.pool, url, false)
	require.NoError(t, err)
	require.Len(t, stored.PriceHistory, 2)
	assert.ElementsMatch(t, []float64{500, 450},
		[]float64{stored.PriceHistory[0].Price, stored.PriceHistory[1].Price})
}

func TestStoreAddSubscriberIntegration(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	url := uniqueURL()

	p, err := store.RecordScrape(ctx, url, func(*models.TrackedProduct) (*models.TrackedProduct, []*OutboxEvent, error) {
		return &models.TrackedProduct{URL: url, Site: models.SiteFlipkart}, nil, nil
	})
	require.NoError(t, err)

	_, added, err := store.AddSubscriber(ctx, p.ID, "a@example.com")
	require.NoError(t, err)
	assert.True(t, added)

	updated, added, err := store.AddSubscriber(ctx, p.ID, "a@example.com")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"a@example.com"}, updated.Subscribers)

	_, _, err = store.AddSubscriber(ctx, uuid.New(), "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListProductsIntegration(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	var ids []uuid.UUID
	for range 3 {
		url := uniqueURL()
		p, err := store.RecordScrape(ctx, url, func(*models.TrackedProduct) (*models.TrackedProduct, []*OutboxEvent, error) {
			return &models.TrackedProduct{URL: url, Site: models.SiteFlipkart}, nil, nil
		})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	list, err := store.ListProducts(ctx, ListFilter{Site: models.SiteFlipkart, ExcludeID: ids[0], Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, p := range list {
		assert.NotEqual(t, ids[0], p.ID)
		assert.Equal(t, models.SiteFlipkart, p.Site)
	}
}

func TestOutboxMarkFailedIntegration(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	url := uniqueURL()

	p, err := store.RecordScrape(ctx, url, func(*models.TrackedProduct) (*models.TrackedProduct, []*OutboxEvent, error) {
		price := 10.0
		tp := &models.TrackedProduct{URL: url, Site: models.SiteFlipkart, CurrentPrice: &price}
		event, err := NewPriceDropEvent(tp, 20, time.Now())
		event.RetryCount = MaxRetryCount - 1
		return tp, []*OutboxEvent{event}, err
	})
	require.NoError(t, err)

	var id uuid.UUID
	err = db.pool.QueryRow(ctx, "SELECT id FROM outbox_event WHERE aggregate_id = $1", p.ID.String()).Scan(&id)
	require.NoError(t, err)

	require.NoError(t, store.Outbox().MarkFailed(ctx, id, assert.AnError))

	var status string
	var retryCount int
	err = db.pool.QueryRow(ctx, "SELECT status, retry_count FROM outbox_event WHERE id = $1", id).Scan(&status, &retryCount)
	require.NoError(t, err)
	assert.Equal(t, OutboxStatusDeadLetter, status)
	assert.Equal(t, MaxRetryCount, retryCount)

	assert.ErrorIs(t, store.Outbox().MarkProcessed(ctx, uuid.New()), ErrNotFound)
}
