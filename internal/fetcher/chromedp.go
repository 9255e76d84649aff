package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/maltedev/product-search-scraper/internal/config"
)

type ChromedpOptions struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	NavTimeout   time.Duration
	Wait         WaitOptions
}

// ChromedpFetcher renders pages through the Chrome DevTools Protocol. The
// browser process starts on the first Fetch and is shared by all tabs.
type ChromedpFetcher struct {
	opts   ChromedpOptions
	logger *slog.Logger

	once          sync.Once
	startErr      error
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func NewChromedpFetcher(opts ChromedpOptions, logger *slog.Logger) *ChromedpFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Wait.Timeout <= 0 {
		opts.Wait.Timeout = 25 * time.Second
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = 1920, 1080
	}
	return &ChromedpFetcher{
		opts:   opts,
		logger: logger.With("component", "chromedp_fetcher"),
	}
}

func (f *ChromedpFetcher) start() error {
	f.once.Do(func() {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", f.opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(f.opts.UserAgent),
			chromedp.WindowSize(f.opts.WindowWidth, f.opts.WindowHeight),
		)

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// the first Run must use the browser context itself, otherwise the
		// browser dies with whatever context started it
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			f.startErr = fmt.Errorf("failed to start chrome: %w", err)
			return
		}

		f.allocCancel = allocCancel
		f.browserCtx = browserCtx
		f.browserCancel = browserCancel
	})
	return f.startErr
}

func (f *ChromedpFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, transportError(pageURL, err)
	}
	if err := f.start(); err != nil {
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: err}
	}

	tabCtx, closeTab := chromedp.NewContext(f.browserCtx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	if err := chromedp.Run(tabCtx); err != nil {
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: fmt.Errorf("failed to open tab: %w", err)}
	}

	start := time.Now()
	navCtx, cancelNav := context.WithTimeout(tabCtx, f.opts.NavTimeout)
	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(pageURL))
	cancelNav()
	if err != nil {
		return nil, f.classify(ctx, pageURL, err, KindTransport)
	}

	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	if status >= 400 {
		return nil, &FetchError{URL: pageURL, Kind: KindStatus, StatusCode: status}
	}

	if f.opts.Wait.Selector != "" {
		waitCtx, cancelWait := context.WithTimeout(tabCtx, f.opts.Wait.Timeout)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(f.opts.Wait.Selector, chromedp.ByQuery))
		cancelWait()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return nil, &FetchError{
					URL:  pageURL,
					Kind: KindTimeout,
					Err:  fmt.Errorf("%w: %s after %s", ErrWaitTimeout, f.opts.Wait.Selector, f.opts.Wait.Timeout),
				}
			}
			return nil, f.classify(ctx, pageURL, err, KindTransport)
		}
	}

	var html, finalURL string
	if err := chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	); err != nil {
		return nil, f.classify(ctx, pageURL, err, KindTransport)
	}

	f.logger.Debug("rendered page",
		"url", pageURL,
		"status", status,
		"duration", time.Since(start))

	return &Page{
		URL:        pageURL,
		FinalURL:   finalURL,
		HTML:       html,
		StatusCode: status,
	}, nil
}

// classify prefers the caller's cancellation over the chromedp error it caused.
func (f *ChromedpFetcher) classify(ctx context.Context, pageURL string, err error, kind ErrorKind) *FetchError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return transportError(pageURL, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &FetchError{URL: pageURL, Kind: kind, Err: err}
}

func (f *ChromedpFetcher) Close() error {
	if f.browserCancel != nil {
		f.browserCancel()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}
	return nil
}
