package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/maltedev/product-search-scraper/internal/fetcher"
	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/maltedev/product-search-scraper/internal/parser"
	"github.com/maltedev/product-search-scraper/internal/parser/parsertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://www.homedepot.com"

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  []string
	onCall func(url string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*fetcher.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(url)
	}
	if err := ctx.Err(); err != nil {
		return nil, &fetcher.FetchError{URL: url, Kind: fetcher.KindTransport, Err: err}
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, &fetcher.FetchError{URL: url, Kind: fetcher.KindStatus, StatusCode: 404}
	}
	return &fetcher.Page{URL: url, FinalURL: url, HTML: html, StatusCode: 200}, nil
}

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingLimiter struct {
	waits int
	err   error
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return l.err
}

func (l *countingLimiter) SetDelay(min, max time.Duration) {}

func pageURL(keyword string, n int) string {
	if n == 1 {
		return fmt.Sprintf("%s/s/%s", testBase, keyword)
	}
	return fmt.Sprintf("%s/s/%s?page=%d", testBase, keyword, n)
}

func nextHref(keyword string, n int) string {
	return fmt.Sprintf("/s/%s?page=%d", keyword, n)
}

// site renders n structured-data pages of perPage products each, every page
// linking to the next one.
func site(f *fakeFetcher, keyword string, n, perPage int) {
	for i := 1; i <= n; i++ {
		next := ""
		if i < n {
			next = nextHref(keyword, i+1)
		}
		products := parsertest.Products(fmt.Sprintf("%s p%d", keyword, i), perPage)
		f.pages[pageURL(keyword, i)] = parsertest.StructuredDataPage(products, next)
	}
}

func newTestCrawler(t *testing.T, f fetcher.Fetcher, limiter *countingLimiter) *Crawler {
	t.Helper()
	p, err := parser.NewSearchParser(testBase, nil)
	require.NoError(t, err)
	return NewCrawler(f, p, limiter, testBase, nil)
}

func TestRun_MilwaukeeExample(t *testing.T) {
	f := newFakeFetcher()

	first := parsertest.Products("Milwaukee Drill", 24)
	first[3].Name = ""
	first[17].Name = ""
	f.pages[pageURL("milwaukee", 1)] = parsertest.StructuredDataPage(first, nextHref("milwaukee", 2))

	second := parsertest.Products("Milwaukee Saw", 24)
	second[0].Name = "Milwaukee Drill 1"
	second[7].Name = "Milwaukee Drill 5"
	second[20].Name = "Milwaukee Drill 10"
	f.pages[pageURL("milwaukee", 2)] = parsertest.StructuredDataPage(second, nextHref("milwaukee", 3))

	limiter := &countingLimiter{}
	c := newTestCrawler(t, f, limiter)

	result := c.Search(context.Background(), "milwaukee", 2)

	assert.Equal(t, models.OutcomeDone, result.Outcome)
	assert.Equal(t, models.StopMaxPages, result.StopReason)
	assert.Equal(t, "milwaukee", result.Keyword)
	assert.Equal(t, 2, result.PagesFetched)
	require.Len(t, result.Pages, 2)
	assert.Len(t, result.Pages[0].Records, 22)
	assert.Len(t, result.Pages[1].Records, 24)
	assert.Len(t, result.Records, 46)
	assert.Len(t, result.Unique, 43)
	assert.Len(t, result.Duplicates, 3)
	assert.Equal(t, 1, limiter.waits)

	for _, d := range result.Duplicates {
		assert.Equal(t, 2, d.Page)
	}
}

func TestRun_ExactlyMaxPagesFetches(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max_pages=%d", n), func(t *testing.T) {
			f := newFakeFetcher()
			site(f, "drill", 8, 4)
			limiter := &countingLimiter{}

			result := newTestCrawler(t, f, limiter).Run(context.Background(), pageURL("drill", 1), n)

			assert.Equal(t, n, f.fetchCount())
			assert.Equal(t, n, result.PagesFetched)
			assert.Equal(t, n-1, limiter.waits)
			assert.Equal(t, models.StopMaxPages, result.StopReason)
			assert.Len(t, result.Records, n*4)

			for i, pr := range result.Pages {
				assert.Equal(t, i+1, pr.Page)
				assert.Equal(t, pageURL("drill", i+1), pr.URL)
			}
		})
	}
}

func TestRun_UnboundedStopsAtLastPage(t *testing.T) {
	f := newFakeFetcher()
	site(f, "hammer", 4, 3)

	result := newTestCrawler(t, f, &countingLimiter{}).Run(context.Background(), pageURL("hammer", 1), 0)

	assert.Equal(t, models.OutcomeDone, result.Outcome)
	assert.Equal(t, models.StopNoNextPage, result.StopReason)
	assert.Equal(t, 0, result.MaxPages)
	assert.Equal(t, 4, result.PagesFetched)
	assert.Len(t, result.Unique, 12)
	assert.Empty(t, result.Duplicates)
}

func TestRun_SiteShorterThanLimit(t *testing.T) {
	f := newFakeFetcher()
	site(f, "saw", 2, 5)

	result := newTestCrawler(t, f, &countingLimiter{}).Run(context.Background(), pageURL("saw", 1), 10)

	assert.Equal(t, models.StopNoNextPage, result.StopReason)
	assert.Equal(t, 2, f.fetchCount())
}

func TestRun_UnboundedStopsWhenLastPageLinksToItself(t *testing.T) {
	f := newFakeFetcher()
	f.pages[pageURL("x", 1)] = parsertest.StructuredDataPage(parsertest.Products("Level", 2), "/s/x")
	limiter := &countingLimiter{}

	result := newTestCrawler(t, f, limiter).Run(context.Background(), pageURL("x", 1), 0)

	assert.Equal(t, models.OutcomeDone, result.Outcome)
	assert.Equal(t, models.StopNoNextPage, result.StopReason)
	assert.Equal(t, 1, f.fetchCount())
	assert.Equal(t, 0, limiter.waits)
	assert.Len(t, result.Unique, 2)
	assert.Empty(t, result.Duplicates)
}

func TestRun_UnboundedStopsOnPaginationCycle(t *testing.T) {
	f := newFakeFetcher()
	f.pages[pageURL("x", 1)] = parsertest.StructuredDataPage(parsertest.Products("Level", 2), nextHref("x", 2))
	f.pages[pageURL("x", 2)] = parsertest.StructuredDataPage(parsertest.Products("Square", 2), "/s/x")

	result := newTestCrawler(t, f, &countingLimiter{}).Run(context.Background(), pageURL("x", 1), 0)

	assert.Equal(t, models.StopNoNextPage, result.StopReason)
	assert.Equal(t, 2, f.fetchCount())
	assert.Len(t, result.Unique, 4)
}

func TestRun_TerminalConditions(t *testing.T) {
	tests := []struct {
		name          string
		second        string
		expectReason  models.StopReason
		expectRecords int
	}{
		{
			name:          "no container on second page",
			second:        parsertest.BarePage(nextHref("tape", 3)),
			expectReason:  models.StopNoContainer,
			expectRecords: 5,
		},
		{
			name:          "container with zero records",
			second:        parsertest.StructuredDataPage(nil, nextHref("tape", 3)),
			expectReason:  models.StopEmptyPage,
			expectRecords: 5,
		},
		{
			name:          "only nameless records",
			second:        parsertest.StructuredDataPage([]parsertest.Product{{Price: 3.0}, {Price: 4.0}}, nextHref("tape", 3)),
			expectReason:  models.StopEmptyPage,
			expectRecords: 5,
		},
		{
			name:          "malformed container",
			second:        parsertest.RawContainerPage(`{"mainEntity":`, nextHref("tape", 3)),
			expectReason:  models.StopEmptyPage,
			expectRecords: 5,
		},
		{
			name:          "next data container",
			second:        parsertest.NextDataPage(parsertest.Products("Tape Measure", 2), ""),
			expectReason:  models.StopNoNextPage,
			expectRecords: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.pages[pageURL("tape", 1)] = parsertest.StructuredDataPage(parsertest.Products("Tape", 5), nextHref("tape", 2))
			f.pages[pageURL("tape", 2)] = tt.second

			result := newTestCrawler(t, f, &countingLimiter{}).Run(context.Background(), pageURL("tape", 1), 0)

			assert.Equal(t, models.OutcomeDone, result.Outcome)
			assert.Equal(t, tt.expectReason, result.StopReason)
			assert.Len(t, result.Records, tt.expectRecords)
			assert.Equal(t, 2, f.fetchCount())
			assert.Empty(t, result.Error)
		})
	}
}

func TestRun_FirstPageWithoutContainer(t *testing.T) {
	f := newFakeFetcher()
	f.pages[pageURL("nothing", 1)] = parsertest.BarePage(nextHref("nothing", 2))

	limiter := &countingLimiter{}
	result := newTestCrawler(t, f, limiter).Run(context.Background(), pageURL("nothing", 1), 3)

	assert.Equal(t, models.OutcomeDone, result.Outcome)
	assert.Equal(t, models.StopNoContainer, result.StopReason)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Pages)
	assert.Equal(t, 0, limiter.waits)
}

func TestRun_FetchFailureKeepsPartialResults(t *testing.T) {
	f := newFakeFetcher()
	site(f, "vac", 3, 6)
	f.errs[pageURL("vac", 2)] = &fetcher.FetchError{
		URL:  pageURL("vac", 2),
		Kind: fetcher.KindTimeout,
		Err:  fetcher.ErrWaitTimeout,
	}

	result := newTestCrawler(t, f, &countingLimiter{}).Run(context.Background(), pageURL("vac", 1), 0)

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, models.StopFetchFailed, result.StopReason)
	assert.True(t, result.Failed())
	assert.Equal(t, 1, result.PagesFetched)
	assert.Len(t, result.Records, 6)
	assert.Len(t, result.Unique, 6)
	assert.Contains(t, result.Error, "timed out waiting for page content")
	assert.False(t, result.FinishedAt.IsZero())
}

func TestRun_FirstFetchFails(t *testing.T) {
	f := newFakeFetcher()
	f.errs[pageURL("x", 1)] = &fetcher.FetchError{URL: pageURL("x", 1), Kind: fetcher.KindTransport, Err: errors.New("connection refused")}

	result := newTestCrawler(t, f, &countingLimiter{}).Run(context.Background(), pageURL("x", 1), 1)

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Empty(t, result.Records)
	assert.NotNil(t, result.Unique)
	assert.NotNil(t, result.Duplicates)
	assert.Equal(t, 0, result.PagesFetched)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	f := newFakeFetcher()
	site(f, "drill", 3, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestCrawler(t, f, &countingLimiter{}).Run(ctx, pageURL("drill", 1), 0)

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, models.StopCanceled, result.StopReason)
	assert.Equal(t, 0, f.fetchCount())
}

func TestRun_CanceledMidCrawl(t *testing.T) {
	f := newFakeFetcher()
	site(f, "drill", 5, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onCall = func(url string) {
		if url == pageURL("drill", 3) {
			cancel()
		}
	}

	result := newTestCrawler(t, f, &countingLimiter{}).Run(ctx, pageURL("drill", 1), 0)

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, models.StopCanceled, result.StopReason)
	assert.Equal(t, 2, result.PagesFetched)
	assert.Len(t, result.Records, 4)
}

func TestRun_LimiterCanceled(t *testing.T) {
	f := newFakeFetcher()
	site(f, "drill", 3, 2)
	limiter := &countingLimiter{err: context.Canceled}

	result := newTestCrawler(t, f, limiter).Run(context.Background(), pageURL("drill", 1), 0)

	assert.Equal(t, models.StopCanceled, result.StopReason)
	assert.Equal(t, 1, f.fetchCount())
	assert.Len(t, result.Records, 2)
}

func TestRun_NeverEmitsNamelessRecords(t *testing.T) {
	f := newFakeFetcher()
	for i := 1; i <= 3; i++ {
		products := parsertest.Products(fmt.Sprintf("Item p%d", i), 10)
		products[i].Name = "  "
		products[i+3].Name = ""
		next := ""
		if i < 3 {
			next = nextHref("item", i+1)
		}
		f.pages[pageURL("item", i)] = parsertest.ApolloStatePage(products, next)
	}

	result := newTestCrawler(t, f, &countingLimiter{}).Run(context.Background(), pageURL("item", 1), 0)

	require.Len(t, result.Records, 24)
	for _, r := range result.Records {
		assert.NotEmpty(t, r.Name)
	}
}

func TestSearch_EmptyKeyword(t *testing.T) {
	f := newFakeFetcher()
	result := newTestCrawler(t, f, &countingLimiter{}).Search(context.Background(), "   ", 1)

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, ErrEmptyKeyword.Error(), result.Error)
	assert.Equal(t, 0, f.fetchCount())
}

func TestAdvance(t *testing.T) {
	p, err := parser.NewSearchParser(testBase, nil)
	require.NoError(t, err)

	withNext, err := parser.Parse(parsertest.BarePage(nextHref("drill", 2)))
	require.NoError(t, err)
	withoutNext, err := parser.Parse(parsertest.BarePage(""))
	require.NoError(t, err)

	t.Run("idempotent without next control", func(t *testing.T) {
		state := models.NewCrawlState(0)
		state.CurrentPage = 3

		for i := 0; i < 3; i++ {
			next, reason := advance(state, p, withoutNext)
			assert.Empty(t, next)
			assert.Equal(t, models.StopNoNextPage, reason)
			assert.Equal(t, 3, state.CurrentPage)
		}
	})

	t.Run("limit reached", func(t *testing.T) {
		state := models.NewCrawlState(2)
		state.CurrentPage = 2

		next, reason := advance(state, p, withNext)
		assert.Empty(t, next)
		assert.Equal(t, models.StopMaxPages, reason)
	})

	t.Run("next page", func(t *testing.T) {
		state := models.NewCrawlState(2)

		next, reason := advance(state, p, withNext)
		assert.Equal(t, pageURL("drill", 2), next)
		assert.Empty(t, reason)
		assert.Equal(t, 1, state.CurrentPage)
	})

	t.Run("nil document", func(t *testing.T) {
		_, reason := advance(models.NewCrawlState(0), p, nil)
		assert.Equal(t, models.StopNoNextPage, reason)
	})
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateFetching.Terminal())
	assert.False(t, StateExtracting.Terminal())
	assert.False(t, StateAdvancing.Terminal())
}
