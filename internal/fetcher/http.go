package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/maltedev/price-tracker/internal/proxy"
)

type HTTPFetcher struct {
	opts Options
}

func NewHTTPFetcher(opts Options) *HTTPFetcher {
	return &HTTPFetcher{opts: opts.withDefaults()}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, session proxy.Session) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.opts.AcceptLanguage)

	transport := sessionTransport(session)
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: f.opts.Timeout}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(f.opts.MaxBodySize)))
	if err != nil {
		return "", &TransportError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if len(body) == 0 {
		return "", &TransportError{URL: url, Status: resp.StatusCode, Err: ErrEmptyBody}
	}
	return string(body), nil
}
