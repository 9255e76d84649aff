package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/maltedev/product-search-scraper/internal/scraper"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrShuttingDown = errors.New("job manager is shutting down")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RunPublisher receives every finished run.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, result *models.RunResult) error
}

// Job is one asynchronous search run.
type Job struct {
	ID          string            `json:"id"`
	Keyword     string            `json:"keyword"`
	MaxPages    int               `json:"max_pages"`
	Status      Status            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Result      *models.RunResult `json:"result,omitempty"`
}

// Stats summarizes all jobs the manager has seen.
type Stats struct {
	TotalJobs      int     `json:"total_jobs"`
	PendingJobs    int     `json:"pending_jobs"`
	RunningJobs    int     `json:"running_jobs"`
	CompletedJobs  int     `json:"completed_jobs"`
	FailedJobs     int     `json:"failed_jobs"`
	UniqueProducts int     `json:"unique_products"`
	DuplicateCount int     `json:"duplicate_count"`
	PagesFetched   int     `json:"pages_fetched"`
	SuccessRate    float64 `json:"success_rate"`
}

// Manager runs searches in the background and keeps their results in memory.
type Manager struct {
	searcher  scraper.Searcher
	publisher RunPublisher
	logger    *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job

	sem     chan struct{}
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	closed  bool
}

func NewManager(searcher scraper.Searcher, publisher RunPublisher, concurrency int, logger *slog.Logger) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		searcher:  searcher,
		publisher: publisher,
		logger:    logger.With("component", "job_manager"),
		jobs:      make(map[string]*Job),
		sem:       make(chan struct{}, concurrency),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Start registers a run and executes it in the background. ctx only guards
// registration: the run itself outlives it and is canceled by Shutdown.
func (m *Manager) Start(ctx context.Context, keyword string, maxPages int) (*Job, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, scraper.ErrEmptyKeyword
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to start search: %w", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Keyword:   keyword,
		MaxPages:  maxPages,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	m.jobs[job.ID] = job
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("job created", "id", job.ID, "keyword", keyword, "max_pages", maxPages)

	go m.run(job.ID, keyword, maxPages)

	return m.snapshot(job), nil
}

func (m *Manager) run(id, keyword string, maxPages int) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-m.baseCtx.Done():
		m.finish(id, m.canceledResult(id, keyword, maxPages))
		return
	}

	now := time.Now()
	m.update(id, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &now
	})
	m.logger.Info("processing job", "id", id, "keyword", keyword)

	result := m.searcher.Search(m.baseCtx, keyword, maxPages)
	result.ID = id
	m.finish(id, result)
}

func (m *Manager) finish(id string, result *models.RunResult) {
	now := time.Now()
	m.update(id, func(j *Job) {
		j.Result = result
		j.CompletedAt = &now
		j.Error = result.Error
		// a failed run that still collected records is a partial success
		j.Status = StatusCompleted
		if result.Failed() && len(result.Records) == 0 {
			j.Status = StatusFailed
		}
	})

	m.logger.Info("job finished",
		"id", id,
		"outcome", result.Outcome,
		"stop_reason", result.StopReason,
		"unique", len(result.Unique),
		"duplicates", len(result.Duplicates))

	if m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.publisher.PublishRunCompleted(ctx, result); err != nil {
		m.logger.Error("failed to publish run event", "id", id, "error", err)
	}
}

func (m *Manager) canceledResult(id, keyword string, maxPages int) *models.RunResult {
	now := time.Now()
	return &models.RunResult{
		ID:         id,
		Keyword:    keyword,
		MaxPages:   maxPages,
		Pages:      []models.PageResult{},
		Unique:     []models.ProductRecord{},
		Duplicates: []models.ProductRecord{},
		Outcome:    models.OutcomeFailed,
		StopReason: models.StopCanceled,
		Error:      ErrShuttingDown.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
}

func (m *Manager) update(id string, fn func(j *Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		fn(j)
	}
}

// snapshot copies a job so callers never race with the worker.
func (m *Manager) snapshot(j *Job) *Job {
	c := *j
	return &c
}

func (m *Manager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return m.snapshot(j), nil
}

// List returns all jobs, newest first.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, m.snapshot(j))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

func (m *Manager) Stats() *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{TotalJobs: len(m.jobs)}
	for _, j := range m.jobs {
		switch j.Status {
		case StatusPending:
			stats.PendingJobs++
		case StatusRunning:
			stats.RunningJobs++
		case StatusCompleted:
			stats.CompletedJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
		if j.Result != nil {
			stats.UniqueProducts += len(j.Result.Unique)
			stats.DuplicateCount += len(j.Result.Duplicates)
			stats.PagesFetched += j.Result.PagesFetched
		}
	}

	if finished := stats.CompletedJobs + stats.FailedJobs; finished > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(finished) * 100
	}
	return stats
}

// Shutdown cancels running searches and waits for them to record their
// partial results, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("job manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
