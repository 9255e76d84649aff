// Package fetcher retrieves the rendered HTML of a search results page.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/product-search-scraper/internal/browser"
	"github.com/maltedev/product-search-scraper/internal/config"
)

// ErrWaitTimeout means the page loaded but the content marker never appeared.
var ErrWaitTimeout = errors.New("timed out waiting for page content")

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Close() error
}

// Page is a fully loaded document.
type Page struct {
	URL        string
	FinalURL   string
	HTML       string
	StatusCode int
}

type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindTimeout   ErrorKind = "timeout"
)

// FetchError wraps every failure a Fetcher reports.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func transportError(url string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{URL: url, Kind: KindTimeout, Err: err}
	}
	return &FetchError{URL: url, Kind: KindTransport, Err: err}
}

// New builds the fetcher named in cfg.Scraper.Fetcher.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Scraper.Fetcher {
	case config.FetcherHTTP:
		return NewHTTPFetcher(HTTPOptions{
			Timeout:   cfg.Scraper.HTTPTimeout,
			UserAgent: cfg.Scraper.UserAgent,
		}, logger), nil
	case config.FetcherPlaywright:
		b, err := browser.New(browser.OptionsFromConfig(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		return NewPlaywrightFetcher(b, WaitOptions{
			Selector:      cfg.Browser.WaitSelector,
			Timeout:       cfg.Browser.WaitTimeout,
			ScreenshotDir: cfg.Browser.ScreenshotDir,
		}, logger), nil
	case config.FetcherChromedp:
		return NewChromedpFetcher(ChromedpOptions{
			Headless:     cfg.Browser.Headless,
			UserAgent:    cfg.Scraper.UserAgent,
			WindowWidth:  cfg.Browser.ViewportWidth,
			WindowHeight: cfg.Browser.ViewportHeight,
			Wait: WaitOptions{
				Selector: cfg.Browser.WaitSelector,
				Timeout:  cfg.Browser.WaitTimeout,
			},
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Scraper.Fetcher)
	}
}

// WaitOptions controls the readiness wait of the browser fetchers.
type WaitOptions struct {
	Selector      string
	Timeout       time.Duration
	ScreenshotDir string
}
