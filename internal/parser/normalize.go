package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

var (
	nonPriceChars  = regexp.MustCompile(`[^\d.,]`)
	leadingFrac    = regexp.MustCompile(`^[^\d.,\p{L}]*[.,]\d`)
	firstNumber    = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	countToken     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([kK])?`)
	commentMarkers = regexp.MustCompile(`<!--|-->|/\*|\*/`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// currencySymbols is ordered so symbol lookups in free text are deterministic.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"₹", "INR"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
}

// CleanPrice reads a displayed price. Only digits and the separators ',' and
// '.' are kept. The last separator is the decimal point when one or two digits
// follow it; every other separator groups thousands. A leading separator is
// kept only when a digit follows it directly and no word precedes it, so
// "$.99" is 0.99 while "Rs. 99" is 99. Returns nil when no number remains.
func CleanPrice(text string) *float64 {
	s := nonPriceChars.ReplaceAllString(text, "")
	s = strings.TrimRight(s, ".,")
	if !leadingFrac.MatchString(strings.TrimSpace(text)) {
		s = strings.TrimLeft(s, ".,")
	}
	if s == "" {
		return nil
	}

	whole, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 {
		if tail := s[i+1:]; len(tail) == 1 || len(tail) == 2 {
			whole, frac = s[:i], tail
		}
	}
	whole = strings.NewReplacer(",", "", ".", "").Replace(whole)
	if whole == "" {
		whole = "0"
	}
	if frac != "" {
		whole += "." + frac
	}

	d, err := decimal.NewFromString(whole)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// CurrencyFromSymbol maps a price symbol to its ISO code, or fallback when the
// symbol is unknown or empty.
func CurrencyFromSymbol(symbol, fallback string) string {
	symbol = strings.TrimSpace(symbol)
	for _, c := range currencySymbols {
		if symbol == c.symbol {
			return c.code
		}
	}
	return fallback
}

// CurrencyFromText finds the first known symbol appearing in text.
func CurrencyFromText(text, fallback string) string {
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			return c.code
		}
	}
	return fallback
}

// ParseRating reads the leading number of texts like "4.3 out of 5 stars".
func ParseRating(text string) float64 {
	match := firstNumber.FindString(text)
	if match == "" {
		return 0
	}
	d, err := decimal.NewFromString(strings.Replace(match, ",", ".", 1))
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// ParseRatingCount reads counts like "1,234 Ratings", "2.5k Ratings" or "(87)".
func ParseRatingCount(text string) int {
	text = strings.ReplaceAll(text, ",", "")
	m := countToken.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0
	}
	if m[2] != "" {
		d = d.Mul(decimal.NewFromInt(1000))
	}
	return int(d.IntPart())
}

// ParseDiscountRate reads "-23%" as 23.
func ParseDiscountRate(text string) float64 {
	text = strings.NewReplacer("-", "", "%", "").Replace(text)
	return ParseRating(text)
}

// ExtractScoreIcon returns the score printed next to a star icon, or "".
func ExtractScoreIcon(text string) string {
	return firstNumber.FindString(strings.TrimSpace(text))
}

// SelectImage picks the first candidate containing marker, else the first
// non-empty candidate. Returns nil when there is none.
func SelectImage(candidates []string, marker string) *string {
	var first string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if marker != "" && strings.Contains(c, marker) {
			return &c
		}
		if first == "" {
			first = c
		}
	}
	if first == "" {
		return nil
	}
	return &first
}

// CleanText trims, drops comment markers left in scraped text and collapses
// runs of whitespace, including non-breaking spaces.
func CleanText(text string) string {
	text = commentMarkers.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// ExtractDescription joins the non-empty text of every element matched by
// the first selector that matches anything, one entry per line.
func ExtractDescription(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		var lines []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if line := CleanText(s.Text()); line != "" {
				lines = append(lines, line)
			}
		})
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}
	return ""
}

// discountPercent is the markdown from listPrice to price, rounded to two
// decimals. Zero when price is not below listPrice.
func discountPercent(price, listPrice float64) float64 {
	if listPrice <= 0 || price >= listPrice {
		return 0
	}
	lp := decimal.NewFromFloat(listPrice)
	off := lp.Sub(decimal.NewFromFloat(price)).Div(lp).Mul(decimal.NewFromInt(100))
	return off.Round(2).InexactFloat64()
}
