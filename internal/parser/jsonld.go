package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const structuredDataSelector = `script[type="application/ld+json"]`

// StructuredProduct is the subset of a schema.org Product or ProductGroup
// block the strategies read.
type StructuredProduct struct {
	Type         string
	Name         string
	Brand        string
	Images       []string
	Category     string
	Price        *float64
	Currency     string
	Availability string
}

type ldTyped struct {
	Type  json.RawMessage   `json:"@type"`
	Graph []json.RawMessage `json:"@graph"`
}

type ldProduct struct {
	Name     string          `json:"name"`
	Brand    json.RawMessage `json:"brand"`
	Image    json.RawMessage `json:"image"`
	Category json.RawMessage `json:"category"`
	Offers   json.RawMessage `json:"offers"`
}

type ldOffer struct {
	Price         json.RawMessage `json:"price"`
	LowPrice      json.RawMessage `json:"lowPrice"`
	PriceCurrency string          `json:"priceCurrency"`
	Availability  string          `json:"availability"`
}

// FindStructuredProduct scans every structured data block in document order
// and decodes the first node whose @type is one of types. Blocks that are not
// valid JSON are skipped. A matching node that does not fit the product schema
// is an error. Returns nil, nil when nothing matches.
func FindStructuredProduct(doc *goquery.Document, types ...string) (*StructuredProduct, error) {
	var (
		found *StructuredProduct
		err   error
	)
	doc.Find(structuredDataSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := bytes.TrimSpace([]byte(s.Text()))
		if !json.Valid(raw) {
			return true
		}
		for _, node := range flattenNodes(raw) {
			typ, ok := matchType(node, types)
			if !ok {
				continue
			}
			found, err = decodeProduct(node)
			if found != nil {
				found.Type = typ
			}
			return false
		}
		return true
	})
	return found, err
}

// flattenNodes expands top-level arrays and @graph containers into the
// individual nodes they hold.
func flattenNodes(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var out []json.RawMessage
		for _, item := range items {
			out = append(out, flattenNodes(item)...)
		}
		return out
	}
	if raw[0] != '{' {
		return nil
	}
	out := []json.RawMessage{raw}
	var t ldTyped
	if err := json.Unmarshal(raw, &t); err == nil {
		for _, g := range t.Graph {
			out = append(out, flattenNodes(g)...)
		}
	}
	return out
}

func matchType(node json.RawMessage, types []string) (string, bool) {
	var t ldTyped
	if err := json.Unmarshal(node, &t); err != nil || len(t.Type) == 0 {
		return "", false
	}
	var names []string
	var single string
	if err := json.Unmarshal(t.Type, &single); err == nil {
		names = []string{single}
	} else if err := json.Unmarshal(t.Type, &names); err != nil {
		return "", false
	}
	for _, name := range names {
		for _, want := range types {
			if name == want {
				return name, true
			}
		}
	}
	return "", false
}

func decodeProduct(node json.RawMessage) (*StructuredProduct, error) {
	var p ldProduct
	if err := json.Unmarshal(node, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	out := &StructuredProduct{Name: CleanText(p.Name)}

	var err error
	if out.Brand, err = decodeNamed(p.Brand); err != nil {
		return nil, fmt.Errorf("%w: brand: %v", ErrSchemaMismatch, err)
	}
	if out.Category, err = decodeNamed(p.Category); err != nil {
		return nil, fmt.Errorf("%w: category: %v", ErrSchemaMismatch, err)
	}
	if out.Images, err = decodeImages(p.Image); err != nil {
		return nil, fmt.Errorf("%w: image: %v", ErrSchemaMismatch, err)
	}

	offer, err := decodeOffer(p.Offers)
	if err != nil {
		return nil, fmt.Errorf("%w: offers: %v", ErrSchemaMismatch, err)
	}
	if offer != nil {
		price := offer.Price
		if isEmptyJSON(price) {
			price = offer.LowPrice
		}
		if out.Price, err = decodePrice(price); err != nil {
			return nil, fmt.Errorf("%w: price: %v", ErrSchemaMismatch, err)
		}
		out.Currency = strings.TrimSpace(offer.PriceCurrency)
		out.Availability = AvailabilityToken(offer.Availability)
	}
	return out, nil
}

// decodeNamed accepts "x" or {"name": "x"}.
func decodeNamed(raw json.RawMessage) (string, error) {
	if isEmptyJSON(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return CleanText(s), nil
	}
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &named); err != nil {
		return "", err
	}
	return CleanText(named.Name), nil
}

// decodeImages accepts a URL, a list of URLs, an ImageObject or a list of
// ImageObjects.
func decodeImages(raw json.RawMessage) ([]string, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}, nil
	}
	type imageObject struct {
		URL        string `json:"url"`
		ContentURL string `json:"contentUrl"`
	}
	var obj imageObject
	if err := json.Unmarshal(raw, &obj); err == nil {
		return []string{firstNonEmpty(obj.URL, obj.ContentURL)}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	var out []string
	for _, item := range items {
		urls, err := decodeImages(item)
		if err != nil {
			return nil, err
		}
		out = append(out, urls...)
	}
	return out, nil
}

func decodeOffer(raw json.RawMessage) (*ldOffer, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}
	var offer ldOffer
	if err := json.Unmarshal(raw, &offer); err == nil {
		return &offer, nil
	}
	var offers []ldOffer
	if err := json.Unmarshal(raw, &offers); err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, nil
	}
	return &offers[0], nil
}

// decodePrice accepts a number or a display string.
func decodePrice(raw json.RawMessage) (*float64, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return CleanPrice(s), nil
}

// AvailabilityToken reduces "https://schema.org/InStock" to "InStock".
func AvailabilityToken(value string) string {
	value = strings.TrimSpace(value)
	if i := strings.LastIndex(value, "/"); i >= 0 {
		value = value[i+1:]
	}
	return value
}

func isEmptyJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
