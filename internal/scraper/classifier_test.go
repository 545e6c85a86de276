package scraper

import (
	"net/http"
	"testing"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySupportedSites(t *testing.T) {
	tests := []struct {
		url      string
		expected models.Site
	}{
		{"https://www.amazon.in/Echo-Dot/dp/B09B8V1LZ3", models.SiteAmazon},
		{"https://amazon.in/Echo-Dot/dp/B09B8V1LZ3", models.SiteAmazon},
		{"https://www.amazon.com/dp/B09B8V1LZ3", models.SiteAmazon},
		{"https://www.flipkart.com/apple-iphone-15/p/itm6ac6485515ae4", models.SiteFlipkart},
		{"https://flipkart.com/apple-iphone-15/p/itm6ac6485515ae4", models.SiteFlipkart},
		{"https://www.myntra.com/jeans/roadster/123/buy", models.SiteMyntra},
		{"https://myntra.com/jeans/roadster/123/buy", models.SiteMyntra},
		{"https://www.ajio.com/netplay-shirt/p/469", models.SiteAjio},
		{"  https://WWW.Amazon.IN/dp/B09B8V1LZ3 \n", models.SiteAmazon},
		{"https://www.flip kart.com/p/1", models.SiteFlipkart},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			site, err := Classify(tt.url)
			require.Nil(t, err)
			assert.Equal(t, tt.expected, site)
		})
	}
}

func TestClassifyIsIdempotentAcrossWWW(t *testing.T) {
	for _, site := range []string{"amazon.in", "flipkart.com", "myntra.com"} {
		with, err := Classify("https://www." + site + "/p/1")
		require.Nil(t, err)
		without, err := Classify("https://" + site + "/p/1")
		require.Nil(t, err)
		assert.Equal(t, with, without, site)
	}
}

func TestClassifyRejectsUnsupported(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		kind    models.ErrorKind
		message string
	}{
		{"unknown site", "https://www.ebay.com/itm/1", models.KindUnsupportedSite, "ebay is not supported! Please check back later."},
		{"ajio without www", "https://ajio.com/p/1", models.KindUnsupportedSite, luxeMessage},
		{"ajio luxe host", "https://luxe.ajio.com/p/1", models.KindUnsupportedSite, luxeMessage},
		{"not a url", "not a url", models.KindInvalidURL, "Invalid URL!"},
		{"missing scheme", "www.amazon.in/dp/B09B8V1LZ3", models.KindInvalidURL, "Invalid URL!"},
		{"ftp scheme", "ftp://www.amazon.in/dp/B09B8V1LZ3", models.KindInvalidURL, "Invalid URL!"},
		{"empty", "", models.KindInvalidURL, "Invalid URL!"},
		{"single label host", "http://localhost/p/1", models.KindInvalidURL, "Invalid URL!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, err := Classify(tt.url)
			require.NotNil(t, err)
			assert.Empty(t, site)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, http.StatusNotFound, err.Status)
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.amazon.in/Echo-Dot/dp/B09B8V1LZ3/ref=sr_1_1?th=1", "https://www.amazon.in/dp/B09B8V1LZ3"},
		{"https://www.flipkart.com/apple-iphone-15/p/itm6ac?pid=MOB&lid=1#reviews", "https://www.flipkart.com/apple-iphone-15/p/itm6ac"},
		{" HTTPS://www.Myntra.com/jeans/123/buy/ ", "https://www.myntra.com/jeans/123/buy"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := CanonicalURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := CanonicalURL("nope")
	assert.ErrorIs(t, err, ErrInvalidURL)
}
