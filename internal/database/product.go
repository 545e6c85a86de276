package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maltedev/price-tracker/internal/models"
)

const productsTable = "tracked_products"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var productColumns = []string{
	"id", "url", "site", "title", "current_price", "list_price", "currency",
	"in_stock", "rating", "rating_count", "category", "image_url", "description",
	"discount_rate", "price_history", "lowest_price", "highest_price",
	"average_price", "subscribers", "created_at", "updated_at",
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ListFilter struct {
	Site      models.Site
	ExcludeID uuid.UUID
	Limit     int
}

type ProductRepository struct{}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

// LockURL takes a transaction scoped advisory lock on url. It serializes
// writers for a URL even before its row exists.
func (r *ProductRepository) LockURL(ctx context.Context, tx pgx.Tx, url string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, url); err != nil {
		return fmt.Errorf("failed to lock %s: %w", url, err)
	}
	return nil
}

func (r *ProductRepository) GetByURL(ctx context.Context, q querier, url string, forUpdate bool) (*models.TrackedProduct, error) {
	return r.getOne(ctx, q, sq.Eq{"url": url}, forUpdate)
}

func (r *ProductRepository) GetByID(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*models.TrackedProduct, error) {
	return r.getOne(ctx, q, sq.Eq{"id": id.String()}, forUpdate)
}

func (r *ProductRepository) getOne(ctx context.Context, q querier, where sq.Eq, forUpdate bool) (*models.TrackedProduct, error) {
	builder := psql.Select(productColumns...).From(productsTable).Where(where)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	p, err := scanProduct(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// List returns tracked products, most recently updated first.
func (r *ProductRepository) List(ctx context.Context, q querier, f ListFilter) ([]*models.TrackedProduct, error) {
	builder := psql.Select(productColumns...).From(productsTable).OrderBy("updated_at DESC", "id")
	if f.Site != "" {
		builder = builder.Where(sq.Eq{"site": string(f.Site)})
	}
	if f.ExcludeID != uuid.Nil {
		builder = builder.Where(sq.NotEq{"id": f.ExcludeID.String()})
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*models.TrackedProduct{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return products, nil
}

// Upsert writes p keyed by URL. An existing row keeps its id, creation time
// and subscribers.
func (r *ProductRepository) Upsert(ctx context.Context, q querier, p *models.TrackedProduct) error {
	history, err := json.Marshal(p.PriceHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal price history: %w", err)
	}
	subscribers := p.Subscribers
	if subscribers == nil {
		subscribers = []string{}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query, args, err := psql.Insert(productsTable).
		Columns(productColumns...).
		Values(
			p.ID, p.URL, string(p.Site), p.Title, p.CurrentPrice, p.ListPrice, p.Currency,
			p.Availability == models.InStock, p.Rating, p.RatingCount, p.Category, p.ImageURL, p.Description,
			p.DiscountRate, history, p.LowestPrice, p.HighestPrice,
			p.AveragePrice, subscribers, p.CreatedAt, p.UpdatedAt,
		).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			site = EXCLUDED.site,
			title = EXCLUDED.title,
			current_price = EXCLUDED.current_price,
			list_price = EXCLUDED.list_price,
			currency = EXCLUDED.currency,
			in_stock = EXCLUDED.in_stock,
			rating = EXCLUDED.rating,
			rating_count = EXCLUDED.rating_count,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			description = EXCLUDED.description,
			discount_rate = EXCLUDED.discount_rate,
			price_history = EXCLUDED.price_history,
			lowest_price = EXCLUDED.lowest_price,
			highest_price = EXCLUDED.highest_price,
			average_price = EXCLUDED.average_price,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, subscribers`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}

	if err := q.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.Subscribers); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) SetSubscribers(ctx context.Context, q querier, id uuid.UUID, subscribers []string) error {
	query, args, err := psql.Update(productsTable).
		Set("subscribers", subscribers).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update subscribers: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*models.TrackedProduct, error) {
	var (
		p       models.TrackedProduct
		site    string
		inStock bool
		history []byte
	)
	err := row.Scan(
		&p.ID, &p.URL, &site, &p.Title, &p.CurrentPrice, &p.ListPrice, &p.Currency,
		&inStock, &p.Rating, &p.RatingCount, &p.Category, &p.ImageURL, &p.Description,
		&p.DiscountRate, &history, &p.LowestPrice, &p.HighestPrice,
		&p.AveragePrice, &p.Subscribers, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Site = models.Site(site)
	if inStock {
		p.Availability = models.InStock
	}
	p.PriceHistory = []models.PricePoint{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &p.PriceHistory); err != nil {
			return nil, fmt.Errorf("failed to decode price history: %w", err)
		}
	}
	if p.Subscribers == nil {
		p.Subscribers = []string{}
	}
	return &p, nil
}
