package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/product-search-scraper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>Drill – 18V</body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{UserAgent: "test-agent"}, nil)
	defer f.Close()

	page, err := f.Fetch(context.Background(), srv.URL+"/s/drill")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, srv.URL+"/s/drill", page.URL)
	assert.Equal(t, srv.URL+"/s/drill", page.FinalURL)
	assert.Contains(t, page.HTML, "Drill – 18V")
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "en-US,en;q=0.9", gotLang)
}

func TestHTTPFetcher_DefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{}, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultUserAgent, gotUA)
}

func TestHTTPFetcher_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/s/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/s/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := NewHTTPFetcher(HTTPOptions{}, nil).Fetch(context.Background(), srv.URL+"/s/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/s/new", page.FinalURL)
}

func TestHTTPFetcher_DecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Café" in latin-1
		w.Write([]byte{'<', 'p', '>', 'C', 'a', 'f', 0xe9, '<', '/', 'p', '>'})
	}))
	defer srv.Close()

	page, err := NewHTTPFetcher(HTTPOptions{}, nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>Café</p>", page.HTML)
}

func TestHTTPFetcher_StatusError(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"forbidden", http.StatusForbidden},
		{"not found", http.StatusNotFound},
		{"rate limited", http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPFetcher(HTTPOptions{}, nil).Fetch(context.Background(), srv.URL)
			require.Error(t, err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, KindStatus, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Contains(t, err.Error(), "unexpected status code")
		})
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPFetcher(HTTPOptions{}, nil).Fetch(ctx, srv.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindTimeout, fe.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{}, nil).Fetch(context.Background(), addr)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindTransport, fe.Kind)
}

func TestNew(t *testing.T) {
	cfg := &config.Config{Scraper: config.ScraperConfig{Fetcher: config.FetcherHTTP}}

	f, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	cfg.Scraper.Fetcher = config.FetcherChromedp
	f, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ChromedpFetcher{}, f)
	assert.NoError(t, f.Close())

	cfg.Scraper.Fetcher = "selenium"
	_, err = New(cfg, nil)
	assert.ErrorContains(t, err, "unknown fetcher")
}

func TestNewChromedpFetcher_Defaults(t *testing.T) {
	f := NewChromedpFetcher(ChromedpOptions{}, nil)

	assert.Equal(t, 25*time.Second, f.opts.Wait.Timeout)
	assert.Equal(t, 30*time.Second, f.opts.NavTimeout)
	assert.Equal(t, config.DefaultUserAgent, f.opts.UserAgent)
	assert.Equal(t, 1920, f.opts.WindowWidth)
}

func TestFetchError(t *testing.T) {
	inner := errors.New("connection reset")
	err := &FetchError{URL: "https://example.com", Kind: KindTransport, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "fetch https://example.com (transport): connection reset", err.Error())

	wait := &FetchError{URL: "https://example.com", Kind: KindTimeout, Err: ErrWaitTimeout}
	assert.ErrorIs(t, wait, ErrWaitTimeout)
}

func TestScreenshotName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.homedepot.com/s/cordless%20drill", "timeout_s_cordless-drill"},
		{"https://www.homedepot.com/s/drill?page=2", "timeout_s_drill"},
		{"https://www.homedepot.com/", "timeout"},
		{"::bad", "timeout"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, screenshotName(tt.url), tt.url)
	}
}
