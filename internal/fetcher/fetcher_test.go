package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/price-tracker/internal/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "en-IN,en;q=0.9", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><span id="productTitle">Lamp</span></body></html>`))
	})
	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no robots", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func fetchers() map[string]Fetcher {
	return map[string]Fetcher{
		KindHTTP:  NewHTTPFetcher(Options{}),
		KindColly: NewCollyFetcher(Options{}),
	}
}

func TestFetchReturnsBody(t *testing.T) {
	srv := newTestServer(t)

	for name, f := range fetchers() {
		t.Run(name, func(t *testing.T) {
			body, err := f.Fetch(context.Background(), srv.URL+"/product", proxy.Session{})
			require.NoError(t, err)
			assert.Contains(t, body, `<span id="productTitle">Lamp</span>`)
		})
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := newTestServer(t)

	for name, f := range fetchers() {
		t.Run(name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+"/blocked", proxy.Session{})

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, http.StatusServiceUnavailable, te.Status)
			assert.ErrorIs(t, err, ErrUnexpectedStatus)
		})
	}
}

func TestFetchHonoursDeadline(t *testing.T) {
	srv := newTestServer(t)

	for name, f := range fetchers() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := f.Fetch(ctx, srv.URL+"/slow", proxy.Session{})

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, 0, te.Status)
			assert.True(t, te.Timeout())
		})
	}
}

func TestFetchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, f := range fetchers() {
		t.Run(name, func(t *testing.T) {
			_, err := f.Fetch(ctx, "http://127.0.0.1:1/never", proxy.Session{})

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestSessionTransport(t *testing.T) {
	p := proxy.NewProvider(proxy.Config{Username: "u", Password: "p", Host: "proxy.local", Port: 9000, AllowInsecureTLS: true})
	tr := sessionTransport(p.NewSession())

	req := httptest.NewRequest(http.MethodGet, "https://www.amazon.in/dp/B0", nil)
	u, err := tr.Proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "proxy.local:9000", u.Host)
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)

	direct := sessionTransport(proxy.Session{})
	u, err = direct.Proxy(req)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Nil(t, direct.TLSClientConfig)
}

func TestNew(t *testing.T) {
	f, err := New("", Options{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = New(KindColly, Options{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CollyFetcher{}, f)

	_, err = New(KindBrowser, Options{}, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New("carrier-pigeon", Options{}, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}
