package fetcher

import (
	"context"
	"fmt"

	"github.com/maltedev/price-tracker/internal/browser"
	"github.com/maltedev/price-tracker/internal/proxy"
)

// BrowserFetcher renders the page in Chromium for sites that build their
// markup client side.
type BrowserFetcher struct {
	browser *browser.Browser
	opts    Options
}

func NewBrowserFetcher(b *browser.Browser, opts Options) *BrowserFetcher {
	return &BrowserFetcher{browser: b, opts: opts.withDefaults()}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string, session proxy.Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{URL: url, Err: err}
	}

	co := browser.ContextOptions{IgnoreTLS: session.AllowInsecureTLS}
	if session.Enabled() {
		co.ProxyServer = "http://" + session.Address()
		co.ProxyUsername = session.Username
		co.ProxyPassword = session.Password
	}

	bctx, err := f.browser.NewContext(co)
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	defer bctx.Close()

	page, status, err := f.browser.Open(bctx, url, remaining(ctx, f.opts.Timeout))
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &TransportError{URL: url, Err: err}
	}
	if status >= 400 {
		return "", &TransportError{URL: url, Status: status, Err: fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)}
	}

	f.browser.HumanizeInteraction(page)

	html, err := page.Content()
	if err != nil {
		return "", &TransportError{URL: url, Status: status, Err: fmt.Errorf("failed to get page content: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	return html, nil
}
