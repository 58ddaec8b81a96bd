package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserFetcher renders pages in headless Chromium for sites that build
// their markup with JavaScript. The browser is launched on first use.
type BrowserFetcher struct {
	userAgent string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewBrowserFetcher(userAgent string) *BrowserFetcher {
	return &BrowserFetcher{userAgent: userAgent}
}

func (bf *BrowserFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	browser, err := bf.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open stealth page: %w", err)
	}
	defer page.Close()

	if bf.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bf.userAgent}); err != nil {
			slog.Warn("Failed to set browser user agent", "error", err)
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	page = page.Context(ctx)

	start := time.Now()
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		slog.Warn("Page did not settle, continuing", "url", url, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	slog.Debug("Browser fetch complete",
		"url", url,
		"final_url", finalURL,
		"size", len(html),
		"duration", time.Since(start))

	// Rod does not expose the document status; a rendered page counts as 200.
	return &Page{
		URL:         finalURL,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
		Rendered:    true,
	}, nil
}

func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	var err error
	if bf.browser != nil {
		err = bf.browser.Close()
		bf.browser = nil
	}
	if bf.launcher != nil {
		bf.launcher.Cleanup()
		bf.launcher = nil
	}
	return err
}

func (bf *BrowserFetcher) connect() (*rod.Browser, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.browser != nil {
		return bf.browser, nil
	}

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}

	slog.Info("Headless browser ready")

	bf.launcher = l
	bf.browser = browser
	return browser, nil
}
