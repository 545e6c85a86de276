package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/maltedev/price-tracker/internal/browser"
	"github.com/maltedev/price-tracker/internal/proxy"
)

const (
	KindHTTP    = "http"
	KindColly   = "colly"
	KindBrowser = "browser"

	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultMaxBodySize = 10 << 20
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrEmptyBody        = errors.New("empty response body")
	ErrUnknownKind      = errors.New("unknown fetcher kind")
)

// Fetcher retrieves the raw markup of a page through a proxy session. The
// deadline comes from ctx. Implementations never retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string, session proxy.Session) (string, error)
}

// TransportError is the only error a Fetcher returns. Status is the upstream
// HTTP status, or 0 when none was received.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

type Options struct {
	UserAgent      string
	AcceptLanguage string
	MaxBodySize    int
	Timeout        time.Duration
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.AcceptLanguage == "" {
		o.AcceptLanguage = "en-IN,en;q=0.9"
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = defaultMaxBodySize
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// New builds the fetcher named by kind. The browser is only required for
// KindBrowser.
func New(kind string, opts Options, b *browser.Browser) (Fetcher, error) {
	switch kind {
	case "", KindHTTP:
		return NewHTTPFetcher(opts), nil
	case KindColly:
		return NewCollyFetcher(opts), nil
	case KindBrowser:
		if b == nil {
			return nil, fmt.Errorf("%w: %s requires a browser", ErrUnknownKind, kind)
		}
		return NewBrowserFetcher(b, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// sessionTransport routes through the session's proxy, or connects directly
// when the session is disabled.
func sessionTransport(session proxy.Session) *http.Transport {
	t := &http.Transport{
		Proxy:                 http.ProxyURL(session.ProxyURL()),
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          1,
		IdleConnTimeout:       30 * time.Second,
	}
	if session.AllowInsecureTLS {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}

// remaining is the time left before ctx expires, capped at fallback.
func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < fallback {
			return left
		}
	}
	return fallback
}
