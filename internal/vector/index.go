// Package vector ranks stored chunks against a query vector.
package vector

import (
	"context"
	"math"

	"github.com/hyperjump/kenkyu/internal/models"
)

// NoThreshold keeps every match regardless of similarity.
var NoThreshold = math.Inf(-1)

// SearchOptions bounds a ranking. Matches must score strictly above Threshold.
// Limit <= 0 returns every match.
type SearchOptions struct {
	Threshold float64
	Limit     int
}

// Index ranks chunks by cosine similarity. Results are ordered by non-increasing
// similarity; the order among equal scores is not part of the contract.
type Index interface {
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]models.QueryMatch, error)
	Count(ctx context.Context) (int64, error)
	AuthorTexts(ctx context.Context, authorID string, limit int) ([]string, error)
	Type() string
	Close() error
}
