package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/product-search-scraper/internal/browser"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightFetcher renders pages in a shared playwright browser context.
type PlaywrightFetcher struct {
	browser *browser.Browser
	wait    WaitOptions
	logger  *slog.Logger
}

func NewPlaywrightFetcher(b *browser.Browser, wait WaitOptions, logger *slog.Logger) *PlaywrightFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if wait.Timeout <= 0 {
		wait.Timeout = 25 * time.Second
	}
	return &PlaywrightFetcher{
		browser: b,
		wait:    wait,
		logger:  logger.With("component", "playwright_fetcher"),
	}
}

func (f *PlaywrightFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, transportError(pageURL, err)
	}

	page, err := f.browser.NewPage()
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: err}
	}
	defer page.Close()

	// playwright calls are not context aware; closing the page aborts them
	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	start := time.Now()
	status, err := f.browser.Navigate(page, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, transportError(pageURL, ctx.Err())
		}
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: err}
	}
	if status >= 400 {
		return nil, &FetchError{URL: pageURL, Kind: KindStatus, StatusCode: status}
	}

	if f.wait.Selector != "" {
		if err := f.browser.WaitForMarker(page, f.wait.Selector, f.wait.Timeout); err != nil {
			if ctx.Err() != nil {
				return nil, transportError(pageURL, ctx.Err())
			}
			if errors.Is(err, browser.ErrMarkerTimeout) {
				f.captureScreenshot(page, pageURL)
				return nil, &FetchError{URL: pageURL, Kind: KindTimeout, Err: fmt.Errorf("%w: %v", ErrWaitTimeout, err)}
			}
			return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: err}
		}
	}

	html, err := page.Content()
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: fmt.Errorf("failed to read content: %w", err)}
	}

	f.logger.Debug("rendered page",
		"url", pageURL,
		"status", status,
		"duration", time.Since(start))

	return &Page{
		URL:        pageURL,
		FinalURL:   page.URL(),
		HTML:       html,
		StatusCode: status,
	}, nil
}

func (f *PlaywrightFetcher) captureScreenshot(page playwright.Page, pageURL string) {
	if f.wait.ScreenshotDir == "" {
		return
	}
	if _, err := f.browser.Screenshot(page, f.wait.ScreenshotDir, screenshotName(pageURL)); err != nil {
		f.logger.Warn("failed to capture timeout screenshot", "url", pageURL, "error", err)
	}
}

func (f *PlaywrightFetcher) Close() error {
	return f.browser.Close()
}

// screenshotName derives a filesystem-safe name from the search URL.
func screenshotName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Path == "" {
		return "timeout"
	}
	name := strings.Trim(u.Path, "/")
	name = strings.NewReplacer("/", "_", "%20", "-", " ", "-").Replace(name)
	if name == "" {
		return "timeout"
	}
	return "timeout_" + name
}
