package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/maltedev/product-search-scraper/internal/api"
	"github.com/maltedev/product-search-scraper/internal/config"
	"github.com/maltedev/product-search-scraper/internal/events"
	"github.com/maltedev/product-search-scraper/internal/fetcher"
	"github.com/maltedev/product-search-scraper/internal/jobs"
	"github.com/maltedev/product-search-scraper/internal/parser"
	"github.com/maltedev/product-search-scraper/internal/ratelimit"
	"github.com/maltedev/product-search-scraper/internal/scraper"
	"github.com/maltedev/product-search-scraper/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize fetcher", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	p, err := parser.NewSearchParser(cfg.Scraper.BaseURL, logger)
	if err != nil {
		logger.Error("failed to initialize parser", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.NewSimpleRateLimiter(cfg.Scraper.DelayMin, cfg.Scraper.DelayMax)
	crawler := scraper.NewCrawler(f, p, limiter, cfg.Scraper.BaseURL, logger)

	// Redis is optional; without REDIS_ADDR run events are not published.
	publisher, err := events.NewFromConfig(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	var runPublisher jobs.RunPublisher
	if publisher != nil {
		runPublisher = publisher
	}
	jobManager := jobs.NewManager(crawler, runPublisher, cfg.Scraper.ConcurrentRuns, logger)

	handlers := api.NewHandlers(crawler, jobManager, logger)
	router := api.NewRouter(handlers, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		if err := jobManager.Shutdown(shutdownCtx); err != nil {
			logger.Error("search runs did not finish in time", "error", err)
		}
	}()

	logger.Info("server starting",
		"addr", server.Addr,
		"fetcher", cfg.Scraper.Fetcher,
		"base_url", cfg.Scraper.BaseURL,
		"events", publisher != nil)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	// In-flight runs must finish before the fetcher and publisher are closed.
	<-stopped

	logger.Info("server stopped")
}
