package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/price-tracker/internal/models"
)

// ApplyFunc turns the stored record for a URL (nil when the URL is new) into
// the record to save, plus any events to emit with it.
type ApplyFunc func(existing *models.TrackedProduct) (*models.TrackedProduct, []*OutboxEvent, error)

// Store groups the product and outbox repositories behind transactional
// operations.
type Store struct {
	db       *DB
	products *ProductRepository
	outbox   *OutboxRepository
}

func NewStore(db *DB) *Store {
	return &Store{
		db:       db,
		products: NewProductRepository(),
		outbox:   NewOutboxRepository(db),
	}
}

func (s *Store) Outbox() *OutboxRepository {
	return s.outbox
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// RecordScrape locks url, applies fn to the stored record and writes the
// result together with its events. Concurrent calls for the same URL
// serialize on the lock, including the first scrape of a new URL.
func (s *Store) RecordScrape(ctx context.Context, url string, fn ApplyFunc) (*models.TrackedProduct, error) {
	var saved *models.TrackedProduct
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := s.products.LockURL(ctx, tx, url); err != nil {
			return err
		}
		existing, err := s.products.GetByURL(ctx, tx, url, true)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		next, events, err := fn(existing)
		if err != nil {
			return err
		}
		if err := s.products.Upsert(ctx, tx, next); err != nil {
			return err
		}
		for _, event := range events {
			// aggregate id is only known after the upsert for new rows
			event.AggregateID = next.ID.String()
			if err := s.outbox.InsertWithTx(ctx, tx, event); err != nil {
				return err
			}
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record scrape: %w", err)
	}
	return saved, nil
}

// AddSubscriber adds email to the product's subscribers. It reports false
// when the address was already subscribed.
func (s *Store) AddSubscriber(ctx context.Context, id uuid.UUID, email string) (*models.TrackedProduct, bool, error) {
	var (
		product *models.TrackedProduct
		added   bool
	)
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		p, err := s.products.GetByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		product = p
		if p.HasSubscriber(email) {
			return nil
		}

		p.Subscribers = append(p.Subscribers, email)
		if err := s.products.SetSubscribers(ctx, tx, id, p.Subscribers); err != nil {
			return err
		}
		event, err := NewSubscriberAddedEvent(p, email)
		if err != nil {
			return err
		}
		if err := s.outbox.InsertWithTx(ctx, tx, event); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return product, added, nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.TrackedProduct, error) {
	return s.products.GetByID(ctx, s.db.pool, id, false)
}

func (s *Store) ListProducts(ctx context.Context, f ListFilter) ([]*models.TrackedProduct, error) {
	return s.products.List(ctx, s.db.pool, f)
}
