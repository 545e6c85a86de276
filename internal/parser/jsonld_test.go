package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindStructuredProduct(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		types    []string
		expected *StructuredProduct
	}{
		{
			name: "plain product with numeric price",
			html: `<script type="application/ld+json">
				{"@type":"Product","name":" Blue Shirt ","image":"https://cdn/x.jpg",
				 "offers":{"price":499,"priceCurrency":"INR","availability":"https://schema.org/InStock"}}
			</script>`,
			types: []string{"Product"},
			expected: &StructuredProduct{
				Type: "Product", Name: "Blue Shirt", Images: []string{"https://cdn/x.jpg"},
				Price: ptr(499), Currency: "INR", Availability: "InStock",
			},
		},
		{
			name: "invalid block skipped and array of nodes",
			html: `<script type="application/ld+json">{not json</script>
				<script type="application/ld+json">
				[{"@type":"BreadcrumbList"},{"@type":["Thing","Product"],"name":"Lamp",
				  "offers":[{"price":"₹1,299.00","priceCurrency":"INR"}]}]
			</script>`,
			types: []string{"Product"},
			expected: &StructuredProduct{
				Type: "Product", Name: "Lamp", Price: ptr(1299), Currency: "INR",
			},
		},
		{
			name: "graph container with brand object and image objects",
			html: `<script type="application/ld+json">
				{"@context":"https://schema.org","@graph":[
				  {"@type":"WebPage"},
				  {"@type":"ProductGroup","name":"Shirt","brand":{"@type":"Brand","name":"NETPLAY"},
				   "image":[{"url":"https://cdn/a.jpg"},"https://cdn/b.jpg"],
				   "category":"Men > Shirts","offers":{"lowPrice":"799"}}]}
			</script>`,
			types: []string{"ProductGroup", "Product"},
			expected: &StructuredProduct{
				Type: "ProductGroup", Name: "Shirt", Brand: "NETPLAY",
				Images: []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
				Category: "Men > Shirts", Price: ptr(799),
			},
		},
		{
			name: "offers without price",
			html: `<script type="application/ld+json">
				{"@type":"Product","name":"Jeans","offers":{"priceCurrency":"INR","availability":"InStock"}}
			</script>`,
			types: []string{"Product"},
			expected: &StructuredProduct{
				Type: "Product", Name: "Jeans", Currency: "INR", Availability: "InStock",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindStructuredProduct(mustDoc(t, tt.html), tt.types...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFindStructuredProductNoMatch(t *testing.T) {
	doc := mustDoc(t, `<script type="application/ld+json">{"@type":"Organization","name":"Shop"}</script>
		<script type="text/javascript">var x = 1;</script>`)

	got, err := FindStructuredProduct(doc, "Product")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindStructuredProductSchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"numeric name", `<script type="application/ld+json">{"@type":"Product","name":42}</script>`},
		{"price object", `<script type="application/ld+json">{"@type":"Product","name":"x","offers":{"price":{"v":1}}}</script>`},
		{"offers string", `<script type="application/ld+json">{"@type":"Product","name":"x","offers":"cheap"}</script>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindStructuredProduct(mustDoc(t, tt.html), "Product")
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestAvailabilityToken(t *testing.T) {
	assert.Equal(t, "InStock", AvailabilityToken("https://schema.org/InStock"))
	assert.Equal(t, "OutOfStock", AvailabilityToken(" OutOfStock "))
	assert.Equal(t, "", AvailabilityToken(""))
}
