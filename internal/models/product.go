package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CategoryNotFound is stored when no category trail could be read from the page.
const CategoryNotFound = "Not Found"

type Site string

const (
	SiteAmazon   Site = "amazon"
	SiteFlipkart Site = "flipkart"
	SiteMyntra   Site = "myntra"
	SiteAjio     Site = "ajio"
)

// Sites lists every supported site in a fixed order.
var Sites = []Site{SiteAmazon, SiteFlipkart, SiteMyntra, SiteAjio}

func (s Site) Valid() bool {
	for _, site := range Sites {
		if s == site {
			return true
		}
	}
	return false
}

type Availability int

const (
	OutOfStock Availability = iota
	InStock
)

func (a Availability) String() string {
	if a == InStock {
		return "In Stock"
	}
	return "Out of Stock"
}

func (a Availability) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Availability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "In Stock":
		*a = InStock
	case "Out of Stock", "":
		*a = OutOfStock
	default:
		return fmt.Errorf("unknown availability %q", s)
	}
	return nil
}

type Product struct {
	URL          string       `json:"url"`
	Site         Site         `json:"site"`
	Title        string       `json:"title"`
	Price        *float64     `json:"price"`
	ListPrice    *float64     `json:"list_price"`
	Currency     string       `json:"currency"`
	Availability Availability `json:"availability"`
	Rating       float64      `json:"rating"`
	RatingCount  int          `json:"rating_count"`
	Category     string       `json:"category"`
	ImageURL     *string      `json:"image_url"`
	Description  string       `json:"description,omitempty"`
	DiscountRate float64      `json:"discount_rate,omitempty"`
	ScrapedAt    time.Time    `json:"scraped_at"`
}

// NewProduct returns a record carrying the field defaults every site starts from.
func NewProduct(site Site, currency string) *Product {
	return &Product{
		Site:         site,
		Currency:     currency,
		Availability: OutOfStock,
		Category:     CategoryNotFound,
	}
}

// FillDefaults applies the resolution rules that hold across sites once all
// fields have been extracted.
func (p *Product) FillDefaults() {
	if p.ListPrice == nil && p.Price != nil {
		lp := *p.Price
		p.ListPrice = &lp
	}
	if p.Category == "" {
		p.Category = CategoryNotFound
	}
}

func (p *Product) IsAvailable() bool {
	return p.Availability == InStock
}

type PricePoint struct {
	Price      float64   `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

type ScrapeResult struct {
	Product *Product `json:"product,omitempty"`
	Error   *Error   `json:"error,omitempty"`
	Success bool     `json:"success"`
}

func Success(p *Product) ScrapeResult {
	return ScrapeResult{Product: p, Success: true}
}

func Failure(err *Error) ScrapeResult {
	return ScrapeResult{Error: err}
}
