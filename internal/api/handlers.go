package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/product-search-scraper/internal/jobs"
	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/maltedev/product-search-scraper/internal/scraper"
)

const defaultMaxPages = 1

type Handlers struct {
	searcher scraper.Searcher
	jobs     *jobs.Manager
	logger   *slog.Logger
}

func NewHandlers(searcher scraper.Searcher, jobs *jobs.Manager, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		searcher: searcher,
		jobs:     jobs,
		logger:   logger.With("component", "api"),
	}
}

// CreateSearchRequest starts an asynchronous run.
type CreateSearchRequest struct {
	Keyword  string `json:"keyword"`
	MaxPages *int   `json:"max_pages"`
}

type CreateSearchResponse struct {
	RunID   string      `json:"run_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

// SearchSummary is a run without its records.
type SearchSummary struct {
	ID           string            `json:"id"`
	Keyword      string            `json:"keyword"`
	MaxPages     int               `json:"max_pages"`
	Status       jobs.Status       `json:"status"`
	Outcome      models.Outcome    `json:"outcome,omitempty"`
	StopReason   models.StopReason `json:"stop_reason,omitempty"`
	PagesFetched int               `json:"pages_fetched"`
	Unique       int               `json:"unique"`
	Duplicates   int               `json:"duplicates"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func summarize(j *jobs.Job) SearchSummary {
	s := SearchSummary{
		ID:          j.ID,
		Keyword:     j.Keyword,
		MaxPages:    j.MaxPages,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		Error:       j.Error,
	}
	if j.Result != nil {
		s.Outcome = j.Result.Outcome
		s.StopReason = j.Result.StopReason
		s.PagesFetched = j.Result.PagesFetched
		s.Unique = len(j.Result.Unique)
		s.Duplicates = len(j.Result.Duplicates)
	}
	return s
}

// CreateSearch handles POST /api/v1/searches
func (h *Handlers) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req CreateSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		h.respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	maxPages := defaultMaxPages
	if req.MaxPages != nil {
		if *req.MaxPages < 0 {
			h.respondError(w, http.StatusBadRequest, "max_pages must not be negative")
			return
		}
		maxPages = *req.MaxPages
	}

	job, err := h.jobs.Start(r.Context(), req.Keyword, maxPages)
	if err != nil {
		if errors.Is(err, jobs.ErrShuttingDown) {
			h.respondError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		h.logger.Error("failed to start search", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to start search")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateSearchResponse{
		RunID:   job.ID,
		Status:  job.Status,
		Message: "Search started",
	})
}

// GetSearch handles GET /api/v1/searches/{runID}
func (h *Handlers) GetSearch(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	job, err := h.jobs.Get(runID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListSearches handles GET /api/v1/searches
func (h *Handlers) ListSearches(w http.ResponseWriter, r *http.Request) {
	all := h.jobs.List()
	out := make([]SearchSummary, 0, len(all))
	for _, j := range all {
		out = append(out, summarize(j))
	}
	h.respondJSON(w, http.StatusOK, out)
}

// GetStats handles GET /api/v1/stats
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.Stats())
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.jobs.Stats()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"runs": map[string]int{
			"pending": stats.PendingJobs,
			"running": stats.RunningJobs,
		},
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
