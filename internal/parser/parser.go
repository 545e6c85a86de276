package parser

import (
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/price-tracker/internal/models"
)

var (
	ErrSchemaMismatch  = errors.New("structured data does not match product schema")
	ErrUnknownSite     = errors.New("no strategy registered for site")
	ErrMissingDocument = errors.New("document is empty")
)

// ParseError reports a page that could not be turned into a record.
type ParseError struct {
	Site models.Site
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s page: %v", e.Site, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Strategy extracts the common product record from one site's markup.
// Implementations hold no mutable state and are safe for concurrent use.
type Strategy interface {
	Site() models.Site
	Extract(doc *goquery.Document) (*models.Product, error)
	ExtractPrice(doc *goquery.Document) (*float64, error)
}

// Registry dispatches to the strategy registered for a site.
type Registry struct {
	strategies map[models.Site]Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[models.Site]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Site()] = s
	}
	return r
}

// DefaultRegistry knows every supported site.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewAmazonStrategy(),
		NewFlipkartStrategy(),
		NewMyntraStrategy(),
		NewAjioStrategy(),
	)
}

func (r *Registry) Get(site models.Site) (Strategy, error) {
	s, ok := r.strategies[site]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, site)
	}
	return s, nil
}

// structured looks up the site's product block and wraps decode failures.
func structured(site models.Site, doc *goquery.Document, types ...string) (*StructuredProduct, error) {
	sp, err := FindStructuredProduct(doc, types...)
	if err != nil {
		return nil, &ParseError{Site: site, Err: err}
	}
	return sp, nil
}
