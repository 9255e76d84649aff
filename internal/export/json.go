package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/maltedev/product-search-scraper/internal/models"
)

type jsonExport struct {
	Keyword      string                 `json:"keyword,omitempty"`
	StartURL     string                 `json:"start_url"`
	Outcome      models.Outcome         `json:"outcome"`
	StopReason   models.StopReason      `json:"stop_reason"`
	Error        string                 `json:"error,omitempty"`
	PagesFetched int                    `json:"pages_fetched"`
	UniqueCount  int                    `json:"unique_count"`
	DupCount     int                    `json:"duplicate_count"`
	Unique       []models.ProductRecord `json:"unique"`
	Duplicates   []models.ProductRecord `json:"duplicates"`
}

func WriteJSON(w io.Writer, result *models.RunResult) error {
	out := jsonExport{
		Keyword:      result.Keyword,
		StartURL:     result.StartURL,
		Outcome:      result.Outcome,
		StopReason:   result.StopReason,
		Error:        result.Error,
		PagesFetched: result.PagesFetched,
		UniqueCount:  len(result.Unique),
		DupCount:     len(result.Duplicates),
		Unique:       nonNil(result.Unique),
		Duplicates:   nonNil(result.Duplicates),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

func nonNil(rs []models.ProductRecord) []models.ProductRecord {
	if rs == nil {
		return []models.ProductRecord{}
	}
	return rs
}
