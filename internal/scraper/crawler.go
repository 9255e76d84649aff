package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/product-search-scraper/internal/fetcher"
	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/maltedev/product-search-scraper/internal/parser"
	"github.com/maltedev/product-search-scraper/internal/ratelimit"
)

// Crawler drives a search through its result pages:
// fetching -> extracting -> advancing -> (fetching | done | failed).
type Crawler struct {
	fetcher fetcher.Fetcher
	parser  parser.Parser
	limiter ratelimit.RateLimiter
	baseURL string
	logger  *slog.Logger
}

func NewCrawler(f fetcher.Fetcher, p parser.Parser, limiter ratelimit.RateLimiter, baseURL string, logger *slog.Logger) *Crawler {
	if limiter == nil {
		limiter = ratelimit.Politeness()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		fetcher: f,
		parser:  p,
		limiter: limiter,
		baseURL: baseURL,
		logger:  logger.With("component", "crawler"),
	}
}

// Search crawls the results for keyword. An invalid keyword or base URL is
// reported as a failed run.
func (c *Crawler) Search(ctx context.Context, keyword string, maxPages int) *models.RunResult {
	startURL, err := SearchURL(c.baseURL, keyword)
	if err != nil {
		now := time.Now()
		return &models.RunResult{
			Keyword:    keyword,
			MaxPages:   maxPages,
			Pages:      []models.PageResult{},
			Unique:     []models.ProductRecord{},
			Duplicates: []models.ProductRecord{},
			Outcome:    models.OutcomeFailed,
			StopReason: models.StopFetchFailed,
			Error:      err.Error(),
			StartedAt:  now,
			FinishedAt: now,
		}
	}

	result := c.Run(ctx, startURL, maxPages)
	result.Keyword = keyword
	return result
}

// Run crawls from startURL until a terminal state. It never returns an
// error: failures are recorded on the result next to whatever was
// accumulated before them. maxPages <= 0 means no page limit.
func (c *Crawler) Run(ctx context.Context, startURL string, maxPages int) *models.RunResult {
	crawl := models.NewCrawlState(maxPages)
	result := &models.RunResult{
		StartURL:  startURL,
		MaxPages:  crawl.MaxPages,
		Pages:     make([]models.PageResult, 0),
		StartedAt: time.Now(),
	}

	log := c.logger.With("start_url", startURL, "max_pages", crawl.MaxPages)
	log.Info("starting crawl")

	var (
		state   = StateFetching
		url     = startURL
		page    *fetcher.Page
		doc     *goquery.Document
		visited = make(map[string]bool)
	)

	for !state.Terminal() {
		switch state {
		case StateFetching:
			if err := ctx.Err(); err != nil {
				state = c.fail(result, models.StopCanceled, err)
				break
			}

			var err error
			page, err = c.fetcher.Fetch(ctx, url)
			if err != nil {
				reason := models.StopFetchFailed
				if ctx.Err() != nil {
					reason = models.StopCanceled
				}
				log.Error("fetch failed", "page", crawl.CurrentPage, "url", url, "error", err)
				state = c.fail(result, reason, err)
				break
			}
			result.PagesFetched++
			visited[url] = true
			if page.FinalURL != "" {
				visited[page.FinalURL] = true
			}
			state = StateExtracting

		case StateExtracting:
			var (
				pr     models.PageResult
				reason models.StopReason
			)
			doc, pr, reason = c.extract(page, crawl.CurrentPage)
			if reason != "" {
				log.Info("crawl finished", "page", crawl.CurrentPage, "reason", reason)
				state = c.done(result, reason)
				break
			}

			result.Pages = append(result.Pages, pr)
			crawl.Accumulated = append(crawl.Accumulated, pr.Records...)
			log.Info("extracted page",
				"page", crawl.CurrentPage,
				"container", pr.Container,
				"records", len(pr.Records),
				"accumulated", len(crawl.Accumulated))
			state = StateAdvancing

		case StateAdvancing:
			next, reason := advance(crawl, c.parser, doc)
			if reason != "" {
				log.Info("crawl finished", "page", crawl.CurrentPage, "reason", reason)
				state = c.done(result, reason)
				break
			}
			// a next link back to a fetched page means pagination has looped
			if visited[next] {
				log.Info("crawl finished", "page", crawl.CurrentPage, "reason", models.StopNoNextPage, "revisit", next)
				state = c.done(result, models.StopNoNextPage)
				break
			}

			if err := c.limiter.Wait(ctx); err != nil {
				state = c.fail(result, models.StopCanceled, err)
				break
			}

			crawl.CurrentPage++
			url = next
			log.Debug("advancing", "page", crawl.CurrentPage, "url", url)
			state = StateFetching
		}
	}

	result.Records = crawl.Accumulated
	result.Unique, result.Duplicates = Partition(crawl.Accumulated)
	result.FinishedAt = time.Now()

	log.Info("crawl completed",
		"outcome", result.Outcome,
		"stop_reason", result.StopReason,
		"pages", result.PagesFetched,
		"records", len(result.Records),
		"unique", len(result.Unique),
		"duplicates", len(result.Duplicates),
		"duration", result.Duration())

	return result
}

// extract parses a fetched page. A non-empty reason ends the crawl.
func (c *Crawler) extract(page *fetcher.Page, pageNum int) (*goquery.Document, models.PageResult, models.StopReason) {
	doc, err := parser.Parse(page.HTML)
	if err != nil {
		c.logger.Warn("unparseable page treated as end of results", "page", pageNum, "error", err)
		return nil, models.PageResult{}, models.StopEmptyPage
	}

	pr, err := c.parser.ParsePage(doc, pageNum)
	pr.URL = page.URL
	switch {
	case errors.Is(err, parser.ErrNoContainer):
		return doc, pr, models.StopNoContainer
	case err != nil:
		c.logger.Warn("extraction failed, treating as end of results", "page", pageNum, "error", err)
		return doc, pr, models.StopEmptyPage
	case pr.Empty():
		return doc, pr, models.StopEmptyPage
	}
	return doc, pr, ""
}

// advance decides whether the crawl continues after the current page. It
// never mutates state; the caller moves CurrentPage once the politeness
// delay has passed.
func advance(state *models.CrawlState, p parser.Parser, doc *goquery.Document) (string, models.StopReason) {
	if state.AtLimit() {
		return "", models.StopMaxPages
	}
	if doc == nil {
		return "", models.StopNoNextPage
	}
	next, ok := p.NextPageURL(doc)
	if !ok {
		return "", models.StopNoNextPage
	}
	return next, ""
}

func (c *Crawler) done(result *models.RunResult, reason models.StopReason) State {
	result.Outcome = models.OutcomeDone
	result.StopReason = reason
	return StateDone
}

func (c *Crawler) fail(result *models.RunResult, reason models.StopReason, err error) State {
	result.Outcome = models.OutcomeFailed
	result.StopReason = reason
	result.Error = err.Error()
	return StateFailed
}
