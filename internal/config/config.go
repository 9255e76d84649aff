package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Scraper ScraperConfig
	Browser BrowserConfig
	Redis   RedisConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	BaseURL        string
	Fetcher        string
	MaxPages       int
	DelayMin       time.Duration
	DelayMax       time.Duration
	HTTPTimeout    time.Duration
	ConcurrentRuns int
	UserAgent      string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	WaitTimeout    time.Duration
	WaitSelector   string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	ScreenshotDir  string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Stream    string
	StreamMax int64
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	FetcherHTTP       = "http"
	FetcherPlaywright = "playwright"
	FetcherChromedp   = "chromedp"
)

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8080),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Scraper: ScraperConfig{
			BaseURL:        getEnvOrDefault("SCRAPER_BASE_URL", "https://www.homedepot.com"),
			Fetcher:        getEnvOrDefault("SCRAPER_FETCHER", FetcherPlaywright),
			MaxPages:       getIntOrDefault("SCRAPER_MAX_PAGES", 1),
			DelayMin:       getDurationOrDefault("SCRAPER_DELAY_MIN", 1500*time.Millisecond),
			DelayMax:       getDurationOrDefault("SCRAPER_DELAY_MAX", 3500*time.Millisecond),
			HTTPTimeout:    getDurationOrDefault("SCRAPER_HTTP_TIMEOUT", 20*time.Second),
			ConcurrentRuns: getIntOrDefault("SCRAPER_CONCURRENT_RUNS", 1),
			UserAgent:      getEnvOrDefault("SCRAPER_USER_AGENT", DefaultUserAgent),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			WaitTimeout:    getDurationOrDefault("BROWSER_WAIT_TIMEOUT", 25*time.Second),
			WaitSelector:   getEnvOrDefault("BROWSER_WAIT_SELECTOR", "script#thd-helmet__script--browseSearchStructuredData"),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			ScreenshotDir:  getEnvOrDefault("BROWSER_SCREENSHOT_DIR", ""),
		},
		Redis: RedisConfig{
			Addr:      getEnvOrDefault("REDIS_ADDR", ""),
			Password:  getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:        getIntOrDefault("REDIS_DB", 0),
			Stream:    getEnvOrDefault("REDIS_STREAM", "stream:product_search"),
			StreamMax: int64(getIntOrDefault("REDIS_STREAM_MAX_LEN", 1000)),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Scraper.Fetcher {
	case FetcherHTTP, FetcherPlaywright, FetcherChromedp:
	default:
		return fmt.Errorf("SCRAPER_FETCHER must be one of http, playwright, chromedp (got %q)", c.Scraper.Fetcher)
	}

	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("SCRAPER_BASE_URL is required")
	}

	if c.Scraper.MaxPages < 0 {
		return fmt.Errorf("SCRAPER_MAX_PAGES cannot be negative")
	}

	if c.Scraper.DelayMin > c.Scraper.DelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN cannot be greater than SCRAPER_DELAY_MAX")
	}

	if c.Scraper.ConcurrentRuns < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENT_RUNS must be at least 1")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// DefaultUserAgent is sent by every fetcher unless SCRAPER_USER_AGENT overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
