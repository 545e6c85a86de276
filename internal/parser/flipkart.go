package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-tracker/internal/models"
)

const (
	flipkartCurrency    = "INR"
	flipkartImageMarker = "/832/832/"
	flipkartBuyNow      = "Buy Now"
)

type FlipkartStrategy struct {
	title       Chain
	price       Chain
	listPrice   Chain
	buyButton   Chain
	breadcrumbs string
	noRatings   string
	rating      Chain
	ratingCount Chain
	images      Chain
	discount    Chain
	description []string
}

func NewFlipkartStrategy() *FlipkartStrategy {
	return &FlipkartStrategy{
		title:       Chain{"span.B_NuCI", "span.VU-ZEz", "h1.yhB1nd"},
		price:       Chain{"div._30jeq3._16Jk6d", "div.Nx9bqj.CxhGGd", "div._30jeq3"},
		listPrice:   Chain{"div._3I9_wc._2p6lqe", "div._3I9_wc"},
		buyButton:   Chain{"button._2KpZ6l._2U9uOA.ihZ75k._3AWRsL span", "button._2KpZ6l._2U9uOA.ihZ75k._3AWRsL", "button.QqFHMw.In9uk2"},
		breadcrumbs: "a._2whKao, a.R0cyWM",
		noRatings:   "span._2dMYsv",
		rating:      Chain{"div._3LWZlK", "div.XQDdHH", "._3LWZlK"},
		ratingCount: Chain{"span._2_R_DZ", "span.Wphh3N", "._2_R_DZ"},
		images:      Chain{"img._396cs4._2amPTt._3qGmMb", "img._2r_T1I._396QI4", "img.DByuf4.IZexXJ.jLEJ7H"},
		discount:    Chain{"div._3Ay6Sb._31Dcoz span", "div.UkUFwK.WW8yVX span"},
		description: []string{"div._1mXcCf p", "div._1AN87F"},
	}
}

func (s *FlipkartStrategy) Site() models.Site {
	return models.SiteFlipkart
}

func (s *FlipkartStrategy) Extract(doc *goquery.Document) (*models.Product, error) {
	if doc == nil {
		return nil, &ParseError{Site: s.Site(), Err: ErrMissingDocument}
	}
	sp, err := structured(s.Site(), doc, "Product")
	if err != nil {
		return nil, err
	}

	product := models.NewProduct(s.Site(), flipkartCurrency)
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
		product.Title = s.title.Text(doc)
	}
	if product.Price == nil {
		product.Price = s.price.Price(doc)
	}
	product.ListPrice = s.listPrice.Price(doc)

	if sp == nil || sp.Availability == "" {
		if s.buyButton.Text(doc) == flipkartBuyNow {
			product.Availability = models.InStock
		}
	}

	if category := Breadcrumb(doc.Find(s.breadcrumbs), 1, 0); category != "" {
		product.Category = category
	}

	if doc.Find(s.noRatings).Length() == 0 {
		product.Rating = ParseRating(s.rating.Text(doc))
		product.RatingCount = ParseRatingCount(s.ratingCount.Text(doc))
	}

	product.DiscountRate = ParseDiscountRate(s.discount.Text(doc))
	product.Description = ExtractDescription(doc, s.description...)

	images = append(images, s.images.AllAttrs(doc, "src")...)
	product.ImageURL = SelectImage(images, flipkartImageMarker)

	product.FillDefaults()
	return product, nil
}

func (s *FlipkartStrategy) ExtractPrice(doc *goquery.Document) (*float64, error) {
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
