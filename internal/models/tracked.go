package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackedProduct is the persisted view of a product: the latest scrape plus
// the price history and the addresses waiting for a price drop.
type TrackedProduct struct {
	ID           uuid.UUID    `json:"id"`
	URL          string       `json:"url"`
	Site         Site         `json:"site"`
	Title        string       `json:"title"`
	CurrentPrice *float64     `json:"current_price"`
	ListPrice    *float64     `json:"list_price"`
	Currency     string       `json:"currency"`
	Availability Availability `json:"availability"`
	Rating       float64      `json:"rating"`
	RatingCount  int          `json:"rating_count"`
	Category     string       `json:"category"`
	ImageURL     *string      `json:"image_url"`
	Description  string       `json:"description,omitempty"`
	DiscountRate float64      `json:"discount_rate,omitempty"`
	PriceHistory []PricePoint `json:"price_history"`
	LowestPrice  *float64     `json:"lowest_price"`
	HighestPrice *float64     `json:"highest_price"`
	AveragePrice *float64     `json:"average_price"`
	Subscribers  []string     `json:"subscribers"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewTrackedProduct starts tracking p with an empty history.
func NewTrackedProduct(p *Product) *TrackedProduct {
	now := time.Now()
	t := &TrackedProduct{
		ID:           uuid.New(),
		URL:          p.URL,
		PriceHistory: []PricePoint{},
		Subscribers:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.ApplyScrape(p)
	return t
}

// ApplyScrape copies the latest extracted fields. History and aggregates are
// left to the caller.
func (t *TrackedProduct) ApplyScrape(p *Product) {
	t.Site = p.Site
	t.Title = p.Title
	t.CurrentPrice = p.Price
	t.ListPrice = p.ListPrice
	t.Currency = p.Currency
	t.Availability = p.Availability
	t.Rating = p.Rating
	t.RatingCount = p.RatingCount
	t.Category = p.Category
	t.ImageURL = p.ImageURL
	t.Description = p.Description
	t.DiscountRate = p.DiscountRate
}

func (t *TrackedProduct) HasSubscriber(email string) bool {
	for _, s := range t.Subscribers {
		if s == email {
			return true
		}
	}
	return false
}
