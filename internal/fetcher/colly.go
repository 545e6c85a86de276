package fetcher

import (
	"context"
	"fmt"

	"github.com/gocolly/colly/v2"
	"github.com/maltedev/price-tracker/internal/proxy"
)

// CollyFetcher builds a collector per call so no cookies or proxy settings
// leak between sessions.
type CollyFetcher struct {
	opts Options
}

func NewCollyFetcher(opts Options) *CollyFetcher {
	return &CollyFetcher{opts: opts.withDefaults()}
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string, session proxy.Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{URL: url, Err: err}
	}

	c := colly.NewCollector(
		colly.UserAgent(f.opts.UserAgent),
		colly.MaxBodySize(f.opts.MaxBodySize),
		colly.AllowURLRevisit(),
	)
	c.Context = ctx
	c.WithTransport(sessionTransport(session))
	c.SetRequestTimeout(remaining(ctx, f.opts.Timeout))

	var (
		body   string
		status int
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", f.opts.AcceptLanguage)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(url); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		if status > 0 {
			err = fmt.Errorf("%w: %v", ErrUnexpectedStatus, err)
		}
		return "", &TransportError{URL: url, Status: status, Err: err}
	}
	if body == "" {
		return "", &TransportError{URL: url, Status: status, Err: ErrEmptyBody}
	}
	return body, nil
}
