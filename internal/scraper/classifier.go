package scraper

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/parser"
)

const luxeMessage = "Ajio Luxe is not supported! Please check back later."

// Classify resolves the site a product URL belongs to. Unsupported and
// malformed URLs come back as an *models.Error with status 404.
func Classify(rawURL string) (models.Site, *models.Error) {
	u, err := parseProductURL(rawURL)
	if err != nil {
		return "", models.NewInvalidURL()
	}

	host := strings.ToLower(u.Hostname())
	hasWWW := strings.HasPrefix(host, "www.")
	host = strings.TrimPrefix(host, "www.")

	labels := strings.Split(host, ".")
	if len(labels) < 2 || labels[0] == "" {
		return "", models.NewInvalidURL()
	}
	token := labels[0]

	switch {
	case token == "luxe" && labels[1] == "ajio":
		return "", models.NewUnsupportedSite(luxeMessage)
	case token == string(models.SiteAjio) && !hasWWW:
		return "", models.NewUnsupportedSite(luxeMessage)
	}

	site := models.Site(token)
	if !site.Valid() {
		return "", models.NewUnsupportedSite(fmt.Sprintf("%s is not supported! Please check back later.", token))
	}
	return site, nil
}

// CanonicalURL is the storage key for a product page: scheme, host and path
// without query, fragment or trailing slash. Amazon pages collapse to their
// /dp/<ASIN> form.
func CanonicalURL(rawURL string) (string, error) {
	u, err := parseProductURL(rawURL)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(u.Host)
	path := strings.TrimRight(u.EscapedPath(), "/")
	if strings.Contains(host, string(models.SiteAmazon)+".") {
		if asin := parser.ASIN(u.Path); asin != "" {
			path = "/dp/" + asin
		}
	}
	return strings.ToLower(u.Scheme) + "://" + host + path, nil
}

func parseProductURL(rawURL string) (*url.URL, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, rawURL)

	u, err := url.Parse(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}
