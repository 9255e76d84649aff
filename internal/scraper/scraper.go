package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/product-search-scraper/internal/models"
)

var (
	ErrEmptyKeyword = errors.New("keyword must not be empty")
	ErrInvalidBase  = errors.New("base URL must be absolute")
)

// Searcher runs one keyword search to completion.
type Searcher interface {
	Search(ctx context.Context, keyword string, maxPages int) *models.RunResult
}

// State is a step of the pagination loop.
type State string

const (
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateAdvancing  State = "advancing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
