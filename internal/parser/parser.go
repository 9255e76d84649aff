package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/product-search-scraper/internal/models"
)

var (
	// ErrNoContainer means none of the known embedded data containers is on the page.
	ErrNoContainer = errors.New("no embedded data container found")

	errMalformed   = errors.New("container is not valid JSON")
	errMissingPath = errors.New("container has no product entries at the expected path")
)

// Parser extracts product records and pagination from a rendered search page.
type Parser interface {
	ParsePage(doc *goquery.Document, page int) (models.PageResult, error)
	NextPageURL(doc *goquery.Document) (string, bool)
}

var nextPageSelectors = []string{
	`nav[aria-label="Pagination Navigation"] a[aria-label="Skip to Next Page"]`,
	`a[aria-label="Next"]`,
}

type SearchParser struct {
	base       *url.URL
	containers []Container
	logger     *slog.Logger
}

func NewSearchParser(baseURL string, logger *slog.Logger) (*SearchParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SearchParser{
		base:       base,
		containers: DefaultContainers(),
		logger:     logger.With("component", "parser"),
	}, nil
}

// WithContainers replaces the ordered container list.
func (p *SearchParser) WithContainers(containers ...Container) *SearchParser {
	p.containers = containers
	return p
}

// Parse builds a document from raw HTML.
func Parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParsePage tries each known container in order and normalizes the first one
// found. A present but unreadable container yields an empty result, which the
// crawler treats as the end of the data.
func (p *SearchParser) ParsePage(doc *goquery.Document, page int) (models.PageResult, error) {
	result := models.PageResult{Page: page, Records: make([]models.ProductRecord, 0)}

	for _, c := range p.containers {
		raw, ok := c.Locate(doc)
		if !ok {
			continue
		}

		result.Container = c.Name

		entries, err := c.Entries(raw)
		if err != nil {
			p.logger.Warn("container found but unreadable, possible schema drift",
				"container", c.Name, "page", page, "error", err, "bytes", len(raw))
			return result, nil
		}

		skipped := 0
		for _, entry := range entries {
			record, ok := p.Normalize(entry)
			if !ok {
				skipped++
				continue
			}
			record.Page = page
			record.Source = c.Name
			result.Records = append(result.Records, record)
		}

		p.logger.Debug("extracted records",
			"container", c.Name, "page", page,
			"raw", len(entries), "records", len(result.Records), "skipped", skipped)

		return result, nil
	}

	return result, ErrNoContainer
}

// NextPageURL returns the absolute destination of the "next page" control.
func (p *SearchParser) NextPageURL(doc *goquery.Document) (string, bool) {
	for _, selector := range nextPageSelectors {
		var next string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if disabled, _ := s.Attr("aria-disabled"); disabled == "true" {
				return true
			}
			href, exists := s.Attr("href")
			href = strings.TrimSpace(href)
			if !exists || href == "" || href == "#" {
				return true
			}
			next = p.resolve(href)
			return false
		})
		if next != "" {
			return next, true
		}
	}
	return "", false
}

func (p *SearchParser) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.base.ResolveReference(ref).String()
}
