package parser

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-tracker/internal/models"
)

const (
	amazonCurrency    = "INR"
	amazonImageMarker = "_SL1500_"
	amazonInStock     = "In Stock"
)

type AmazonStrategy struct {
	title        Chain
	price        Chain
	listPrice    Chain
	symbol       Chain
	availability Chain
	breadcrumbs  string
	rating       Chain
	ratingCount  Chain
	discount     Chain
	description  []string
}

func NewAmazonStrategy() *AmazonStrategy {
	return &AmazonStrategy{
		title: Chain{"#productTitle", "#title"},
		price: Chain{
			".priceToPay span.a-price-whole",
			"span.a-price-whole",
			"#priceblock_dealprice",
			"#priceblock_ourprice",
			"span.a-price.a-text-price.a-size-medium.apexPriceToPay span.a-offscreen",
		},
		listPrice: Chain{
			"span.a-size-small.a-color-secondary.aok-align-center.basisPrice span.a-price.a-text-price span.a-offscreen",
			"#listPrice",
			".a-price.a-text-price span.a-offscreen",
		},
		symbol:       Chain{"span.a-price-symbol"},
		availability: Chain{"#availability span.a-color-success"},
		breadcrumbs:  "#wayfinding-breadcrumbs_feature_div ul.a-unordered-list.a-horizontal.a-size-small li",
		rating:       Chain{"#averageCustomerReviews span.a-icon-alt", "span.a-icon-alt"},
		ratingCount:  Chain{"#acrCustomerReviewText"},
		discount:     Chain{".savingsPercentage"},
		description: []string{
			"#feature-bullets ul li span.a-list-item",
			"#productDescription p",
		},
	}
}

func (s *AmazonStrategy) Site() models.Site {
	return models.SiteAmazon
}

func (s *AmazonStrategy) Extract(doc *goquery.Document) (*models.Product, error) {
	if doc == nil {
		return nil, &ParseError{Site: s.Site(), Err: ErrMissingDocument}
	}
	sp, err := structured(s.Site(), doc, "Product")
	if err != nil {
		return nil, err
	}

	product := models.NewProduct(s.Site(), amazonCurrency)
	if sp != nil {
		product.Title = sp.Name
		product.Price = sp.Price
		if sp.Currency != "" {
			product.Currency = sp.Currency
		}
		if sp.Availability == "InStock" {
			product.Availability = models.InStock
		}
	}

	if product.Title == "" {
		product.Title = s.title.Text(doc)
	}
	if product.Price == nil {
		product.Price = s.price.Price(doc)
		product.Currency = CurrencyFromSymbol(s.symbol.Text(doc), product.Currency)
	}
	product.ListPrice = s.listPrice.Price(doc)

	if sp == nil || sp.Availability == "" {
		if s.availability.Text(doc) == amazonInStock {
			product.Availability = models.InStock
		}
	}

	if category := s.extractCategory(doc); category != "" {
		product.Category = category
	}

	product.Rating = ParseRating(s.rating.Text(doc))
	product.RatingCount = ParseRatingCount(s.ratingCount.Text(doc))
	product.DiscountRate = ParseDiscountRate(s.discount.Text(doc))
	product.Description = ExtractDescription(doc, s.description...)

	var images []string
	if sp != nil {
		images = sp.Images
	}
	images = append(images, s.extractImages(doc)...)
	product.ImageURL = SelectImage(images, amazonImageMarker)

	product.FillDefaults()
	return product, nil
}

func (s *AmazonStrategy) ExtractPrice(doc *goquery.Document) (*float64, error) {
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

// extractCategory reads the third breadcrumb entry.
func (s *AmazonStrategy) extractCategory(doc *goquery.Document) string {
	items := doc.Find(s.breadcrumbs)
	if items.Length() <= 2 {
		return ""
	}
	return CleanText(items.Eq(2).Find("a").First().Text())
}

// extractImages lists candidates from the main image block first, then the
// thumbnail strip upgraded to full size.
func (s *AmazonStrategy) extractImages(doc *goquery.Document) []string {
	var images []string

	for _, selector := range []string{"#landingImage", "#imgBlkFront"} {
		img := doc.Find(selector).First()
		if hires, ok := img.Attr("data-old-hires"); ok && hires != "" {
			images = append(images, hires)
		}
		if dynamic, ok := img.Attr("data-a-dynamic-image"); ok {
			images = append(images, dynamicImageURLs(dynamic)...)
		}
		if src, ok := img.Attr("src"); ok && src != "" {
			images = append(images, src)
		}
	}

	doc.Find("#altImages ul li img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			full := strings.Replace(src, "_AC_US40_", "_AC_SL1500_", 1)
			full = strings.Replace(full, "_AC_SR38,50_", "_AC_SL1500_", 1)
			images = append(images, full)
		}
	})

	return images
}

// dynamicImageURLs decodes the {"url": [width, height]} map Amazon embeds in
// data-a-dynamic-image, largest image first. Ties sort by URL.
func dynamicImageURLs(raw string) []string {
	var sizes map[string][]int
	if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
		return nil
	}
	type candidate struct {
		url  string
		area int
	}
	candidates := make([]candidate, 0, len(sizes))
	for u, dims := range sizes {
		area := 0
		if len(dims) == 2 {
			area = dims[0] * dims[1]
		}
		candidates = append(candidates, candidate{url: u, area: area})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].area != candidates[j].area {
			return candidates[i].area > candidates[j].area
		}
		return candidates[i].url < candidates[j].url
	})

	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.url
	}
	return urls
}

// ASIN returns the ten character product id from an Amazon product URL path.
func ASIN(rawURL string) string {
	for _, marker := range []string{"/dp/", "/gp/product/"} {
		i := strings.Index(rawURL, marker)
		if i < 0 {
			continue
		}
		rest := rawURL[i+len(marker):]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			rest = rest[:j]
		}
		if len(rest) == 10 {
			if _, err := strconv.ParseUint(rest, 36, 64); err == nil {
				return strings.ToUpper(rest)
			}
		}
	}
	return ""
}
