package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/maltedev/price-tracker/internal/models"
)

const (
	AggregateProduct = "tracked_product"

	EventPriceDrop       = "PRICE_DROP"
	EventSubscriberAdded = "SUBSCRIBER_ADDED"

	StreamPriceDrops  = "stream:price_drops"
	StreamSubscribers = "stream:subscribers"
)

// StreamFor maps an event type to the Redis stream it is relayed to.
func StreamFor(eventType string) string {
	switch eventType {
	case EventSubscriberAdded:
		return StreamSubscribers
	default:
		return StreamPriceDrops
	}
}

type PriceDropPayload struct {
	ProductID     string    `json:"product_id"`
	URL           string    `json:"url"`
	Site          string    `json:"site"`
	Title         string    `json:"title"`
	Currency      string    `json:"currency"`
	PreviousPrice float64   `json:"previous_price"`
	CurrentPrice  float64   `json:"current_price"`
	LowestPrice   float64   `json:"lowest_price"`
	Subscribers   []string  `json:"subscribers"`
	ObservedAt    time.Time `json:"observed_at"`
}

type SubscriberAddedPayload struct {
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Email     string `json:"email"`
}

// NewPriceDropEvent announces that p dropped from previous to its current
// price. The subscriber list is captured at write time.
func NewPriceDropEvent(p *models.TrackedProduct, previous float64, observedAt time.Time) (*OutboxEvent, error) {
	if p.CurrentPrice == nil {
		return nil, fmt.Errorf("%w: price drop without current price", ErrInvalidEvent)
	}
	payload := PriceDropPayload{
		ProductID:     p.ID.String(),
		URL:           p.URL,
		Site:          string(p.Site),
		Title:         p.Title,
		Currency:      p.Currency,
		PreviousPrice: previous,
		CurrentPrice:  *p.CurrentPrice,
		Subscribers:   append([]string{}, p.Subscribers...),
		ObservedAt:    observedAt,
	}
	if p.LowestPrice != nil {
		payload.LowestPrice = *p.LowestPrice
	}
	return newEvent(p, EventPriceDrop, payload)
}

func NewSubscriberAddedEvent(p *models.TrackedProduct, email string) (*OutboxEvent, error) {
	return newEvent(p, EventSubscriberAdded, SubscriberAddedPayload{
		ProductID: p.ID.String(),
		URL:       p.URL,
		Title:     p.Title,
		Email:     email,
	})
}

func newEvent(p *models.TrackedProduct, eventType string, payload any) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &OutboxEvent{
		AggregateType: AggregateProduct,
		AggregateID:   p.ID.String(),
		EventType:     eventType,
		Payload:       data,
		TargetStream:  StreamFor(eventType),
	}, nil
}
