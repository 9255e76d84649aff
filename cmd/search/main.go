package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/maltedev/product-search-scraper/internal/config"
	"github.com/maltedev/product-search-scraper/internal/export"
	"github.com/maltedev/product-search-scraper/internal/fetcher"
	"github.com/maltedev/product-search-scraper/internal/parser"
	"github.com/maltedev/product-search-scraper/internal/ratelimit"
	"github.com/maltedev/product-search-scraper/internal/scraper"
	"github.com/maltedev/product-search-scraper/pkg/logger"
)

func main() {
	var (
		keyword        = flag.String("keyword", "", "Search keyword")
		maxPages       = flag.Int("pages", -1, "Maximum number of pages to fetch (0 = until the last page)")
		fetcherName    = flag.String("fetcher", "", "Fetcher to use: http, playwright or chromedp")
		outputFile     = flag.String("output", "", "Write results to this file instead of stdout")
		format         = flag.String("format", "table", "Output format: table, csv or json")
		headless       = flag.Bool("headless", true, "Run browser in headless mode")
		showDuplicates = flag.Bool("show-duplicates", false, "Include duplicate listings in the output")
	)
	flag.Parse()

	if *keyword == "" {
		fmt.Fprintln(os.Stderr, "Please provide a search keyword with -keyword")
		flag.Usage()
		os.Exit(1)
	}

	outFormat, err := export.ParseFormat(*format)
	if err != nil {
		log.Fatalf("Invalid -format: %v", err)
	}

	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *fetcherName != "" {
		cfg.Scraper.Fetcher = *fetcherName
	}
	if *maxPages >= 0 {
		cfg.Scraper.MaxPages = *maxPages
	}
	cfg.Browser.Headless = *headless && cfg.Browser.Headless
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// stdout carries the results
	logger := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting product search",
		"keyword", *keyword,
		"max_pages", cfg.Scraper.MaxPages,
		"fetcher", cfg.Scraper.Fetcher)

	os.Exit(run(cfg, logger, *keyword, outFormat, *outputFile, export.Options{ShowDuplicates: *showDuplicates}))
}

func run(cfg *config.Config, logger *slog.Logger, keyword string, format export.Format, outputFile string, opts export.Options) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize fetcher", "error", err)
		return 1
	}
	defer f.Close()

	p, err := parser.NewSearchParser(cfg.Scraper.BaseURL, logger)
	if err != nil {
		logger.Error("Failed to initialize parser", "error", err)
		return 1
	}

	limiter := ratelimit.NewSimpleRateLimiter(cfg.Scraper.DelayMin, cfg.Scraper.DelayMax)
	crawler := scraper.NewCrawler(f, p, limiter, cfg.Scraper.BaseURL, logger)

	result := crawler.Search(ctx, keyword, cfg.Scraper.MaxPages)

	if outputFile != "" {
		err = export.WriteFile(outputFile, format, result, opts)
		if err == nil {
			logger.Info("Results written", "file", outputFile, "format", format)
		}
	} else {
		err = export.Write(os.Stdout, format, result, opts)
	}
	if err != nil {
		logger.Error("Failed to write results", "error", err)
		return 1
	}

	if result.Failed() && len(result.Records) == 0 {
		return 1
	}
	return 0
}
