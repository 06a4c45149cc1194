// Package store holds the deduplicated chunk records and persists them after every mutation.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/models"
)

// EmbedFunc produces the vector for a novel text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Outcome describes what an upsert did.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCreated
	OutcomeLinked
	OutcomeUnchanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeLinked:
		return "linked"
	case OutcomeUnchanged:
		return "unchanged"
	default:
		return "failed"
	}
}

// UpsertResult is returned by Upsert.
type UpsertResult struct {
	Outcome Outcome
	Index   int
}

// RecordStore owns the chunk collection. Text is the unique key.
type RecordStore struct {
	mu      sync.RWMutex
	records []models.ChunkRecord
	byText  map[string]int
	dim     int
	persist Persistence
	logger  *zap.Logger
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *RecordStore) { s.logger = l }
}

// Open loads all records from p. Load errors, including corrupt snapshots, are returned
// so the caller can refuse to start.
func Open(p Persistence, opts ...Option) (*RecordStore, error) {
	s := &RecordStore{
		byText:  make(map[string]int),
		persist: p,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	records, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	for _, r := range records {
		if i, ok := s.byText[r.Text]; ok {
			// Merge duplicates left behind by older writers.
			for _, id := range r.AuthorIDs {
				if !s.records[i].HasAuthor(id) {
					s.records[i].AuthorIDs = append(s.records[i].AuthorIDs, id)
				}
			}
			continue
		}
		if s.dim == 0 {
			s.dim = len(r.Vector)
		}
		s.byText[r.Text] = len(s.records)
		s.records = append(s.records, r)
	}
	s.logger.Debug("store loaded", zap.Int("records", len(s.records)), zap.Int("dimensions", s.dim))
	return s, nil
}

// FindByText returns the index of the record with exactly this text.
func (s *RecordStore) FindByText(text string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byText[text]
	return i, ok
}

// Upsert links authorID to the record for text, creating it with embed when the text is new.
// An embed failure leaves the store untouched and returns OutcomeFailed with an error
// wrapping ErrProvider. A persistence failure rolls back the in-memory change.
func (s *RecordStore) Upsert(ctx context.Context, text, authorID string, embed EmbedFunc) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byText[text]; ok {
		if s.records[i].HasAuthor(authorID) {
			return UpsertResult{Outcome: OutcomeUnchanged, Index: i}, nil
		}
		s.records[i].AuthorIDs = append(s.records[i].AuthorIDs, authorID)
		if err := s.persist.Save(s.records); err != nil {
			ids := s.records[i].AuthorIDs
			s.records[i].AuthorIDs = ids[:len(ids)-1]
			return UpsertResult{Outcome: OutcomeFailed, Index: i}, fmt.Errorf("persist store: %w", err)
		}
		return UpsertResult{Outcome: OutcomeLinked, Index: i}, nil
	}

	vec, err := embed(ctx, text)
	if err != nil {
		return UpsertResult{Outcome: OutcomeFailed, Index: -1}, fmt.Errorf("%w: embed: %v", models.ErrProvider, err)
	}
	if len(vec) == 0 {
		return UpsertResult{Outcome: OutcomeFailed, Index: -1}, fmt.Errorf("%w: empty embedding", models.ErrProvider)
	}
	if s.dim != 0 && len(vec) != s.dim {
		return UpsertResult{Outcome: OutcomeFailed, Index: -1},
			fmt.Errorf("%w: got %d, store has %d", models.ErrDimensionMismatch, len(vec), s.dim)
	}

	idx := len(s.records)
	s.records = append(s.records, models.ChunkRecord{Text: text, Vector: vec, AuthorIDs: []string{authorID}})
	s.byText[text] = idx
	if err := s.persist.Save(s.records); err != nil {
		s.records = s.records[:idx]
		delete(s.byText, text)
		return UpsertResult{Outcome: OutcomeFailed, Index: -1}, fmt.Errorf("persist store: %w", err)
	}
	if s.dim == 0 {
		s.dim = len(vec)
	}
	return UpsertResult{Outcome: OutcomeCreated, Index: idx}, nil
}

// All returns a copy of every record in insertion order.
func (s *RecordStore) All() []models.ChunkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChunkRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Each calls fn for every record under the read lock. fn must not retain or mutate r.
func (s *RecordStore) Each(fn func(r *models.ChunkRecord)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.records {
		fn(&s.records[i])
	}
}

// Len returns the number of records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimensions returns the vector length fixed by the first record, or 0 when empty.
func (s *RecordStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// TextsByAuthor returns texts associated with authorID in insertion order, at most limit
// when limit > 0.
func (s *RecordStore) TextsByAuthor(authorID string, limit int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for i := range s.records {
		if s.records[i].HasAuthor(authorID) {
			out = append(out, s.records[i].Text)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Stats summarizes the store. AvgAuthors is unique authors per chunk.
func (s *RecordStore) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	authors := make(map[string]struct{})
	var multi []string
	for _, r := range s.records {
		for _, id := range r.AuthorIDs {
			authors[id] = struct{}{}
		}
		if len(r.AuthorIDs) > 1 {
			multi = append(multi, r.Text)
		}
	}
	st := models.StoreStats{
		Chunks:            len(s.records),
		UniqueAuthors:     len(authors),
		MultiAuthorChunks: multi,
	}
	if st.Chunks > 0 {
		st.AvgAuthors = float64(st.UniqueAuthors) / float64(st.Chunks)
	}
	return st
}

// Authors returns every distinct author id, sorted.
func (s *RecordStore) Authors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, r := range s.records {
		for _, id := range r.AuthorIDs {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
