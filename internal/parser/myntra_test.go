package parser

import (
	"testing"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const myntraStructuredFixture = `<html><head>
	<script type="application/ld+json">{"@context":"http://schema.org","@type":"BreadcrumbList","itemListElement":[]}</script>
	<script type="application/ld+json">{"@context":"http://schema.org","@type":"Product",
		"name":"Roadster Men Black Slim Fit Jeans",
		"image":"https://assets.myntassets.com/h_720,q_90,w_540/v1/assets/images/1.jpg",
		"offers":{"@type":"Offer","priceCurrency":"INR","availability":"InStock"}}</script>
</head><body>
	<h1 class="pdp-title">Roadster</h1><h1 class="pdp-name">Men Slim Fit Jeans</h1>
	<p class="pdp-discount-container">
		<span class="pdp-price"><strong>₹899</strong></span>
		<span class="pdp-mrp"><s>₹1999</s></span>
	</p>
	<div class="breadcrumbs-container">
		<a class="breadcrumbs-link">Home</a>
		<a class="breadcrumbs-link">Clothing</a>
		<a class="breadcrumbs-link">Men Jeans</a>
		<a class="breadcrumbs-link">Roadster Jeans</a>
	</div>
	<div class="index-overallRating"><div>4.2</div><span>★</span></div>
	<div class="index-ratingsCount">12.5k Ratings</div>
</body></html>`

func TestMyntraStructuredWithoutPriceFallsBackToDOM(t *testing.T) {
	product, err := NewMyntraStrategy().Extract(mustDoc(t, myntraStructuredFixture))
	require.NoError(t, err)

	assert.Equal(t, "Roadster Men Black Slim Fit Jeans", product.Title, "title comes from the structured block")
	require.NotNil(t, product.ImageURL)
	assert.Equal(t, "https://assets.myntassets.com/h_720,q_90,w_540/v1/assets/images/1.jpg", *product.ImageURL)
	require.NotNil(t, product.Price)
	assert.Equal(t, 899.0, *product.Price, "price comes from the page")
	require.NotNil(t, product.ListPrice)
	assert.Equal(t, 1999.0, *product.ListPrice)
	assert.Equal(t, "INR", product.Currency)
	assert.Equal(t, models.InStock, product.Availability)
	assert.Equal(t, "Men Jeans", product.Category)
	assert.Equal(t, 4.2, product.Rating)
	assert.Equal(t, 12500, product.RatingCount)
	assert.InDelta(t, 55.03, product.DiscountRate, 0.001)
}

func TestMyntraDOMFallback(t *testing.T) {
	html := `<body>
		<h1 class="pdp-title">Roadster</h1><h1 class="pdp-name">Men Slim Fit Jeans</h1>
		<span class="pdp-price"><strong>€25,50</strong></span>
		<div class="image-grid-image" style='background-image: url("https://assets.myntassets.com/h_1440,q_90/v1/2.jpg");'></div>
		<div class="image-grid-image" style='background-image: url("https://assets.myntassets.com/h_720,q_90,w_540/v1/2.jpg");'></div>
		<div class="pdp-add-to-bag"><span class="myntraweb-sprite"></span>ADD TO BAG</div>
		<div class="breadcrumbs-container"><a class="breadcrumbs-link">Home</a><a class="breadcrumbs-link">Clothing</a></div>
	</body>`

	product, err := NewMyntraStrategy().Extract(mustDoc(t, html))
	require.NoError(t, err)

	assert.Equal(t, "Roadster Men Slim Fit Jeans", product.Title)
	require.NotNil(t, product.Price)
	assert.Equal(t, 25.5, *product.Price)
	assert.Equal(t, "EUR", product.Currency)
	assert.Equal(t, models.InStock, product.Availability)
	assert.Equal(t, "Clothing", product.Category, "short trail degrades to the second crumb")
	require.NotNil(t, product.ImageURL)
	assert.Equal(t, "https://assets.myntassets.com/h_720,q_90,w_540/v1/2.jpg", *product.ImageURL)
	assert.Equal(t, 0.0, product.Rating)
}

func TestMyntraOutOfStockMarkerWins(t *testing.T) {
	html := `<div class="size-buttons-out-of-stock">OUT OF STOCK</div>
		<div class="pdp-add-to-bag">ADD TO BAG</div>`

	product, err := NewMyntraStrategy().Extract(mustDoc(t, html))
	require.NoError(t, err)
	assert.Equal(t, models.OutOfStock, product.Availability)
}

func TestMyntraInvalidStructuredBlock(t *testing.T) {
	html := `<script type="application/ld+json">{"@type":"Product","name":42}</script>`

	product, err := NewMyntraStrategy().Extract(mustDoc(t, html))
	assert.Nil(t, product)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, models.SiteMyntra, parseErr.Site)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestMyntraExtractPrice(t *testing.T) {
	price, err := NewMyntraStrategy().ExtractPrice(mustDoc(t, myntraStructuredFixture))
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.Equal(t, 899.0, *price)
}
