package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderImageURL is used when a listing carries no product image.
const PlaceholderImageURL = "https://placehold.co/100x100/e2e8f0/333333?text=No+Image"

// ProductRecord is one normalized product listing. Name is the identity key.
type ProductRecord struct {
	Name          string              `json:"name"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	Link          string              `json:"link"`
	ImageURL      string              `json:"image_url"`
	Page          int                 `json:"page"`
	Source        string              `json:"source,omitempty"`
}

// HasDiscount reports whether an original price above the current one is known.
func (p ProductRecord) HasDiscount() bool {
	return p.CurrentPrice.Valid && p.OriginalPrice.Valid &&
		p.OriginalPrice.Decimal.GreaterThan(p.CurrentPrice.Decimal)
}

func (p ProductRecord) DisplayPrice() string {
	return FormatPrice(p.CurrentPrice)
}

func (p ProductRecord) DisplayOriginalPrice() string {
	return FormatPrice(p.OriginalPrice)
}

func FormatPrice(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return "$" + d.Decimal.StringFixed(2)
}

// PageResult holds the records extracted from one rendered page. An empty
// result means the site has no more data.
type PageResult struct {
	Page      int             `json:"page"`
	URL       string          `json:"url"`
	Container string          `json:"container,omitempty"`
	Records   []ProductRecord `json:"records"`
}

func (r PageResult) Empty() bool {
	return len(r.Records) == 0
}

// CrawlState tracks loop progress. MaxPages == 0 means unbounded.
type CrawlState struct {
	CurrentPage int
	Accumulated []ProductRecord
	MaxPages    int
}

func NewCrawlState(maxPages int) *CrawlState {
	if maxPages < 0 {
		maxPages = 0
	}
	return &CrawlState{
		CurrentPage: 1,
		Accumulated: make([]ProductRecord, 0),
		MaxPages:    maxPages,
	}
}

func (s *CrawlState) Bounded() bool {
	return s.MaxPages > 0
}

func (s *CrawlState) AtLimit() bool {
	return s.Bounded() && s.CurrentPage >= s.MaxPages
}

type Outcome string

const (
	OutcomeDone   Outcome = "done"
	OutcomeFailed Outcome = "failed"
)

type StopReason string

const (
	StopNoContainer StopReason = "no_container"
	StopEmptyPage   StopReason = "empty_page"
	StopMaxPages    StopReason = "max_pages"
	StopNoNextPage  StopReason = "no_next_page"
	StopFetchFailed StopReason = "fetch_failed"
	StopCanceled    StopReason = "canceled"
)

// RunResult is the outcome of one crawl, partial when Outcome is failed.
type RunResult struct {
	ID           string          `json:"id"`
	Keyword      string          `json:"keyword"`
	StartURL     string          `json:"start_url"`
	MaxPages     int             `json:"max_pages"`
	PagesFetched int             `json:"pages_fetched"`
	Pages        []PageResult    `json:"pages"`
	Records      []ProductRecord `json:"-"`
	Unique       []ProductRecord `json:"unique"`
	Duplicates   []ProductRecord `json:"duplicates"`
	Outcome      Outcome         `json:"outcome"`
	StopReason   StopReason      `json:"stop_reason"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

func (r *RunResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
