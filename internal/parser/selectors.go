package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Chain is an ordered list of selectors. Lookups try each in turn and the
// first non-empty result wins.
type Chain []string

func (c Chain) Text(doc *goquery.Document) string {
	for _, selector := range c {
		if text := CleanText(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// Attr returns the first non-empty value of any of attrs on the first element
// matched by each selector.
func (c Chain) Attr(doc *goquery.Document, attrs ...string) string {
	for _, selector := range c {
		sel := doc.Find(selector).First()
		for _, attr := range attrs {
			if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// Price returns the first selector text that normalizes to a number.
func (c Chain) Price(doc *goquery.Document) *float64 {
	for _, selector := range c {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		if price := CleanPrice(text); price != nil {
			return price
		}
	}
	return nil
}

// AllAttrs collects attr from every element matched by the chain, in order.
func (c Chain) AllAttrs(doc *goquery.Document, attr string) []string {
	var out []string
	for _, selector := range c {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				out = append(out, strings.TrimSpace(v))
			}
		})
	}
	return out
}

// Breadcrumb reads a category trail entry. Indices are tried in order and
// the first one that exists with non-empty text wins.
func Breadcrumb(items *goquery.Selection, indices ...int) string {
	for _, i := range indices {
		if i < 0 || i >= items.Length() {
			continue
		}
		if text := CleanText(items.Eq(i).Text()); text != "" {
			return text
		}
	}
	return ""
}

// OwnText is the text of sel with the text of its child elements removed.
func OwnText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.First().Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			b.WriteString(s.Text())
		}
	})
	return CleanText(b.String())
}
