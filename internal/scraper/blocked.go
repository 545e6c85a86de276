package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var captchaSelectors = []string{
	"#captchacharacters",
	"form[action*='Captcha']",
	"form[action*='validateCaptcha']",
	"div.g-recaptcha",
	"iframe[src*='captcha']",
}

var blockedTitles = []string{
	"robot check",
	"access denied",
	"are you a human",
	"site maintenance",
}

// detectBlock reports whether the page is a CAPTCHA or anti-bot interstitial
// rather than a product page, naming what matched.
func detectBlock(doc *goquery.Document) (string, bool) {
	for _, selector := range captchaSelectors {
		if doc.Find(selector).Length() > 0 {
			return selector, true
		}
	}

	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	for _, marker := range blockedTitles {
		if strings.Contains(title, marker) {
			return "title: " + title, true
		}
	}
	return "", false
}
