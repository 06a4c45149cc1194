package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/store"
	"github.com/hyperjump/kenkyu/pkg/utils"
)

// ScanIndex scores every record in a RecordStore. Exact, O(n) per query.
type ScanIndex struct {
	store *store.RecordStore
}

// NewScanIndex ranks over s.
func NewScanIndex(s *store.RecordStore) (*ScanIndex, error) {
	if s == nil {
		return nil, fmt.Errorf("scan index requires a record store")
	}
	return &ScanIndex{store: s}, nil
}

// Type returns the index type identifier.
func (m *ScanIndex) Type() string {
	return string(IndexTypeScan)
}

// Search returns matches above opts.Threshold sorted by similarity descending.
// Equal scores keep store insertion order.
func (m *ScanIndex) Search(ctx context.Context, query []float32, opts SearchOptions) ([]models.QueryMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if dim := m.store.Dimensions(); dim != 0 && len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", models.ErrDimensionMismatch, len(query), dim)
	}
	var matches []models.QueryMatch
	m.store.Each(func(r *models.ChunkRecord) {
		sim := utils.Cosine(query, r.Vector)
		if sim <= opts.Threshold {
			return
		}
		ids := make([]string, len(r.AuthorIDs))
		copy(ids, r.AuthorIDs)
		matches = append(matches, models.QueryMatch{Text: r.Text, AuthorIDs: ids, Similarity: sim})
	})
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// Count returns the number of records.
func (m *ScanIndex) Count(_ context.Context) (int64, error) {
	return int64(m.store.Len()), nil
}

// AuthorTexts returns the author's texts in insertion order.
func (m *ScanIndex) AuthorTexts(_ context.Context, authorID string, limit int) ([]string, error) {
	return m.store.TextsByAuthor(authorID, limit), nil
}

// Close is a no-op; the store outlives the index.
func (m *ScanIndex) Close() error { return nil }
