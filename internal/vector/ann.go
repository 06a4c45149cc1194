package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/storage"
)

// minSimilarity is below any cosine value, so backends never see -Inf.
const minSimilarity = -2.0

// ANNIndex delegates ranking to the relational backend's match function.
type ANNIndex struct {
	table storage.Table
}

// NewANNIndex ranks through table.
func NewANNIndex(table storage.Table) (*ANNIndex, error) {
	if table == nil {
		return nil, fmt.Errorf("ann index requires a table")
	}
	return &ANNIndex{table: table}, nil
}

// Type returns the backend name, e.g. "postgres".
func (a *ANNIndex) Type() string {
	return a.table.Type()
}

// Search forwards query, threshold and count. Rows come back sorted by the backend.
func (a *ANNIndex) Search(ctx context.Context, query []float32, opts SearchOptions) ([]models.QueryMatch, error) {
	threshold := opts.Threshold
	if threshold < minSimilarity {
		threshold = minSimilarity
	}
	matches, err := a.table.Match(ctx, query, threshold, opts.Limit)
	if err != nil {
		return nil, backendErr("match", err)
	}
	return matches, nil
}

// Count returns the row count.
func (a *ANNIndex) Count(ctx context.Context) (int64, error) {
	n, err := a.table.Count(ctx)
	if err != nil {
		return 0, backendErr("count", err)
	}
	return n, nil
}

// AuthorTexts returns the author's texts in row order.
func (a *ANNIndex) AuthorTexts(ctx context.Context, authorID string, limit int) ([]string, error) {
	texts, err := a.table.TextsByAuthor(ctx, authorID, limit)
	if err != nil {
		return nil, backendErr("author texts", err)
	}
	return texts, nil
}

// Close closes the underlying table.
func (a *ANNIndex) Close() error {
	return a.table.Close()
}

func backendErr(op string, err error) error {
	if errors.Is(err, models.ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", models.ErrBackendUnavailable, op, err)
}
