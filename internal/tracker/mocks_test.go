package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/maltedev/price-tracker/internal/database"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) ScrapeProduct(ctx context.Context, rawURL string) models.ScrapeResult {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(models.ScrapeResult)
}

// MockStore runs the ApplyFunc against the configured existing record and
// keeps the emitted events.
type MockStore struct {
	mock.Mock
	mu     sync.Mutex
	events []*database.OutboxEvent
}

func (m *MockStore) RecordScrape(ctx context.Context, url string, fn database.ApplyFunc) (*models.TrackedProduct, error) {
	args := m.Called(ctx, url)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	existing, _ := args.Get(0).(*models.TrackedProduct)

	next, events, err := fn(existing)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.events = append(m.events, events...)
	m.mu.Unlock()
	return next, nil
}

func (m *MockStore) AddSubscriber(ctx context.Context, id uuid.UUID, email string) (*models.TrackedProduct, bool, error) {
	args := m.Called(ctx, id, email)
	p, _ := args.Get(0).(*models.TrackedProduct)
	return p, args.Bool(1), args.Error(2)
}

func (m *MockStore) GetProduct(ctx context.Context, id uuid.UUID) (*models.TrackedProduct, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.TrackedProduct)
	return p, args.Error(1)
}

func (m *MockStore) ListProducts(ctx context.Context, filter database.ListFilter) ([]*models.TrackedProduct, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]*models.TrackedProduct)
	return list, args.Error(1)
}

func (m *MockStore) Events() []*database.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*database.OutboxEvent(nil), m.events...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
