package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/product-search-scraper/internal/config"
	"github.com/maltedev/product-search-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	EventTypeSearchRunCompleted EventType = "SEARCH_RUN_COMPLETED"
)

// RedisClient is the subset of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// SearchRunCompletedPayload summarizes a finished run. Records are not
// included; consumers fetch them from the API by run ID.
type SearchRunCompletedPayload struct {
	EventID      string            `json:"event_id"`
	EventType    string            `json:"event_type"`
	Timestamp    time.Time         `json:"timestamp"`
	RunID        string            `json:"run_id"`
	Keyword      string            `json:"keyword"`
	StartURL     string            `json:"start_url"`
	Outcome      models.Outcome    `json:"outcome"`
	StopReason   models.StopReason `json:"stop_reason"`
	PagesFetched int               `json:"pages_fetched"`
	Unique       int               `json:"unique"`
	Duplicates   int               `json:"duplicates"`
	DurationMS   int64             `json:"duration_ms"`
	Error        string            `json:"error,omitempty"`
	Source       string            `json:"source"`
}

// Publisher appends run events to a Redis stream. A nil *Publisher is valid
// and publishes nothing.
type Publisher struct {
	redis  RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, maxLen int64, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With("component", "event_publisher"),
	}
}

// NewFromConfig connects to Redis when an address is configured. Without
// one it returns a nil publisher.
func NewFromConfig(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewPublisher(client, cfg.Stream, cfg.StreamMax, logger), nil
}

func NewSearchRunCompletedPayload(result *models.RunResult) *SearchRunCompletedPayload {
	return &SearchRunCompletedPayload{
		EventID:      uuid.New().String(),
		EventType:    string(EventTypeSearchRunCompleted),
		Timestamp:    time.Now(),
		RunID:        result.ID,
		Keyword:      result.Keyword,
		StartURL:     result.StartURL,
		Outcome:      result.Outcome,
		StopReason:   result.StopReason,
		PagesFetched: result.PagesFetched,
		Unique:       len(result.Unique),
		Duplicates:   len(result.Duplicates),
		DurationMS:   result.Duration().Milliseconds(),
		Error:        result.Error,
		Source:       "product-search-scraper",
	}
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, result *models.RunResult) error {
	if p == nil {
		return nil
	}

	payload := NewSearchRunCompletedPayload(result)
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]interface{}{
			"event_id":   payload.EventID,
			"event_type": payload.EventType,
			"run_id":     payload.RunID,
			"keyword":    payload.Keyword,
			"timestamp":  fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
			"payload":    string(data),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"run_id", payload.RunID,
		"stream", p.stream,
		"stream_id", id)

	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.redis.Close()
}
