package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Browser owns one playwright driver and one Chromium process. Pages are
// opened in short-lived contexts so every proxy session gets its own
// cookies and exit address.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ExtraHeaders   map[string]string
}

// ContextOptions configures a single browsing context.
type ContextOptions struct {
	ProxyServer   string
	ProxyUsername string
	ProxyPassword string
	IgnoreTLS     bool
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-IN,en;q=0.9",
		TimezoneID:     "Asia/Kolkata",
		Locale:         "en-IN",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// NewContext opens an isolated context. Callers close it when done.
func (b *Browser) NewContext(co ContextOptions) (playwright.BrowserContext, error) {
	headers := make(map[string]string, len(b.opts.ExtraHeaders)+1)
	for k, v := range b.opts.ExtraHeaders {
		headers[k] = v
	}
	if b.opts.AcceptLanguage != "" {
		headers["Accept-Language"] = b.opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &b.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(co.IgnoreTLS),
		Locale:            &b.opts.Locale,
		TimezoneId:        &b.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}
	if co.ProxyServer != "" {
		contextOpts.Proxy = &playwright.Proxy{
			Server:   co.ProxyServer,
			Username: playwright.String(co.ProxyUsername),
			Password: playwright.String(co.ProxyPassword),
		}
	}

	ctx, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	return ctx, nil
}

// Open navigates a fresh page of bctx to url and returns it with the
// response status. The page belongs to the context and closes with it.
func (b *Browser) Open(bctx playwright.BrowserContext, url string, timeout time.Duration) (playwright.Page, int, error) {
	page, err := bctx.NewPage()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create new page: %w", err)
	}
	if timeout <= 0 {
		timeout = b.opts.Timeout
	}
	page.SetDefaultTimeout(float64(timeout.Milliseconds()))

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		b.logger.Warn("navigation failed", "url", url, "error", err)
		return page, 0, fmt.Errorf("failed to navigate: %w", err)
	}

	status := 0
	if resp != nil {
		status = resp.Status()
	}
	return page, status, nil
}

// HumanizeInteraction moves the mouse and scrolls a little so lazy content
// renders before the markup is read.
func (b *Browser) HumanizeInteraction(page playwright.Page) {
	for i := 0; i < 3; i++ {
		page.Mouse().Move(float64(100+i*200), float64(100+i*150))
		time.Sleep(time.Millisecond * time.Duration(200+i*100))
	}
	if _, err := page.Evaluate(`window.scrollBy(0, Math.random() * 300)`); err != nil {
		b.logger.Debug("scroll failed", "error", err)
	}
}

func (b *Browser) Close() error {
	var errs []error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
