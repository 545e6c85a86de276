package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-tracker/internal/models"
)

const (
	myntraCurrency    = "INR"
	myntraImageMarker = "h_720"
	myntraAddToBag    = "ADD TO BAG"
)

var backgroundImageURL = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)

type MyntraStrategy struct {
	brand       Chain
	name        Chain
	price       Chain
	listPrice   Chain
	outOfStock  string
	addToBag    Chain
	breadcrumbs string
	rating      Chain
	ratingCount Chain
	images      string
	description []string
}

func NewMyntraStrategy() *MyntraStrategy {
	return &MyntraStrategy{
		brand:       Chain{"h1.pdp-title"},
		name:        Chain{"h1.pdp-name"},
		price:       Chain{"span.pdp-price strong", "p.pdp-discount-container span.pdp-price"},
		listPrice:   Chain{"span.pdp-mrp s", "span.pdp-mrp"},
		outOfStock:  "div.size-buttons-out-of-stock",
		addToBag:    Chain{"div.pdp-add-to-bag"},
		breadcrumbs: "div.breadcrumbs-container a.breadcrumbs-link",
		rating:      Chain{"div.index-overallRating div", "div.index-overallRating"},
		ratingCount: Chain{"div.index-ratingsCount"},
		images:      "div.image-grid-image",
		description: []string{"p.pdp-product-description-content", "div.pdp-productDescriptorsContainer p"},
	}
}

func (s *MyntraStrategy) Site() models.Site {
	return models.SiteMyntra
}

func (s *MyntraStrategy) Extract(doc *goquery.Document) (*models.Product, error) {
	if doc == nil {
		return nil, &ParseError{Site: s.Site(), Err: ErrMissingDocument}
	}
	sp, err := structured(s.Site(), doc, "Product")
	if err != nil {
		return nil, err
	}

	product := models.NewProduct(s.Site(), myntraCurrency)
	var images []string
	if sp != nil {
		product.Title = sp.Name
		product.Price = sp.Price
		if sp.Currency != "" {
			product.Currency = sp.Currency
		}
		if sp.Availability == "InStock" {
			product.Availability = models.InStock
		}
		images = append(images, sp.Images...)
	}

	if product.Title == "" {
		product.Title = strings.TrimSpace(s.brand.Text(doc) + " " + s.name.Text(doc))
	}
	if product.Price == nil {
		priceText := s.price.Text(doc)
		product.Price = CleanPrice(priceText)
		product.Currency = CurrencyFromText(priceText, product.Currency)
	}
	product.ListPrice = s.listPrice.Price(doc)

	if sp == nil || sp.Availability == "" {
		product.Availability = s.domAvailability(doc)
	}

	if category := Breadcrumb(doc.Find(s.breadcrumbs), 2, 1, 0); category != "" {
		product.Category = category
	}

	product.Rating = ParseRating(s.rating.Text(doc))
	product.RatingCount = ParseRatingCount(s.ratingCount.Text(doc))
	product.Description = ExtractDescription(doc, s.description...)

	images = append(images, s.gridImages(doc)...)
	product.ImageURL = SelectImage(images, myntraImageMarker)

	if product.ListPrice != nil && product.Price != nil && *product.ListPrice > 0 {
		product.DiscountRate = discountPercent(*product.Price, *product.ListPrice)
	}

	product.FillDefaults()
	return product, nil
}

func (s *MyntraStrategy) ExtractPrice(doc *goquery.Document) (*float64, error) {
	if doc == nil {
		return nil, &ParseError{Site: s.Site(), Err: ErrMissingDocument}
	}
	sp, err := structured(s.Site(), doc, "Product")
	if err != nil {
		return nil, err
	}
	if sp != nil && sp.Price != nil {
		return sp.Price, nil
	}
	return s.price.Price(doc), nil
}

// domAvailability treats the sold-out marker as authoritative.
func (s *MyntraStrategy) domAvailability(doc *goquery.Document) models.Availability {
	if doc.Find(s.outOfStock).Length() > 0 {
		return models.OutOfStock
	}
	if s.addToBag.Text(doc) == myntraAddToBag {
		return models.InStock
	}
	return models.OutOfStock
}

// gridImages reads the background-image urls of the gallery tiles.
func (s *MyntraStrategy) gridImages(doc *goquery.Document) []string {
	var out []string
	doc.Find(s.images).Each(func(_ int, tile *goquery.Selection) {
		style, _ := tile.Attr("style")
		if m := backgroundImageURL.FindStringSubmatch(style); m != nil {
			out = append(out, m[1])
		}
	})
	return out
}
