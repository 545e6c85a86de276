package parser

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-tracker/internal/models"
)

const (
	ajioCurrency    = "INR"
	ajioImageMarker = "473Wx593H"
	ajioAddToBag    = "ADD TO BAG"
)

// ajioInStock is the closed set of structured availability values read as
// in stock.
var ajioInStock = []string{"InStock", "LimitedAvailability"}

type AjioStrategy struct {
	brand       Chain
	name        Chain
	price       Chain
	listPrice   Chain
	promoPrice  string
	infoPrice   string
	breadcrumbs string
	addToBag    string
	images      Chain
	description []string
}

func NewAjioStrategy() *AjioStrategy {
	return &AjioStrategy{
		brand:       Chain{"h2.brand-name"},
		name:        Chain{"h1.prod-name"},
		price:       Chain{"div.prod-sp"},
		listPrice:   Chain{"span.prod-cp"},
		promoPrice:  "div.promo-discounted-price.pr-promotions span",
		infoPrice:   "div.price-info.ellipsis",
		breadcrumbs: "div.breadcrumb-section ul.breadcrumb-list li",
		addToBag:    "div.btn-gold span",
		images:      Chain{"div.img-container img", "img.rilrtl-lazy-img"},
		description: []string{"ul.prod-list li.detail-list", "section.prod-desc li"},
	}
}

func (s *AjioStrategy) Site() models.Site {
	return models.SiteAjio
}

func (s *AjioStrategy) Extract(doc *goquery.Document) (*models.Product, error) {
	if doc == nil {
		return nil, &ParseError{Site: s.Site(), Err: ErrMissingDocument}
	}
	sp, err := structured(s.Site(), doc, "ProductGroup", "Product")
	if err != nil {
		return nil, err
	}

	product := models.NewProduct(s.Site(), ajioCurrency)
	var images []string
	var structuredAvailability bool
	if sp != nil {
		product.Title = strings.TrimSpace(sp.Brand + " " + sp.Name)
		product.Price = sp.Price
		if sp.Currency != "" {
			product.Currency = sp.Currency
		}
		if sp.Availability != "" {
			structuredAvailability = true
			if slices.Contains(ajioInStock, sp.Availability) {
				product.Availability = models.InStock
			}
		}
		if sp.Category != "" {
			parts := strings.Split(sp.Category, ">")
			product.Category = CleanText(parts[len(parts)-1])
		}
		images = append(images, sp.Images...)
	}

	if product.Title == "" {
		product.Title = strings.TrimSpace(s.brand.Text(doc) + " " + s.name.Text(doc))
	}
	if product.Price == nil {
		product.Price = s.price.Price(doc)
	}
	if sale := s.salePrice(doc); sale != nil && (product.Price == nil || *sale < *product.Price) {
		product.Price = sale
	}
	product.ListPrice = s.listPrice.Price(doc)

	if !structuredAvailability {
		if CleanText(doc.Find(s.addToBag).Eq(1).Text()) == ajioAddToBag {
			product.Availability = models.InStock
		}
	}

	if product.Category == "" || product.Category == models.CategoryNotFound {
		items := doc.Find(s.breadcrumbs)
		if items.Length() > 3 {
			if category := CleanText(items.Eq(3).Find("a").First().Text()); category != "" {
				product.Category = category
			}
		}
	}

	product.Description = ExtractDescription(doc, s.description...)

	images = append(images, s.images.AllAttrs(doc, "src")...)
	product.ImageURL = SelectImage(images, ajioImageMarker)

	if product.ListPrice != nil && product.Price != nil {
		product.DiscountRate = discountPercent(*product.Price, *product.ListPrice)
	}

	product.FillDefaults()
	return product, nil
}

func (s *AjioStrategy) ExtractPrice(doc *goquery.Document) (*float64, error) {
	if doc == nil {
		return nil, &ParseError{Site: s.Site(), Err: ErrMissingDocument}
	}
	sp, err := structured(s.Site(), doc, "ProductGroup", "Product")
	if err != nil {
		return nil, err
	}
	var price *float64
	if sp != nil {
		price = sp.Price
	}
	if price == nil {
		price = s.price.Price(doc)
	}
	if sale := s.salePrice(doc); sale != nil && (price == nil || *sale < *price) {
		price = sale
	}
	return price, nil
}

// salePrice reads the price shown in the promotion box, falling back to the
// bare text of the price info line.
func (s *AjioStrategy) salePrice(doc *goquery.Document) *float64 {
	if text := CleanText(doc.Find(s.promoPrice).Eq(1).Text()); text != "" {
		if price := CleanPrice(text); price != nil {
			return price
		}
	}
	return CleanPrice(OwnText(doc.Find(s.infoPrice)))
}
