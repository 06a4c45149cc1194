// Package models defines core data structures for chunk records, queries, and ranked results.
package models

// ChunkRecord is the unit of storage: one deduplicated text with its embedding
// and the set of authors that produced it. Text is the unique key of a store.
type ChunkRecord struct {
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
	AuthorIDs []string  `json:"author_ids"`
}

// HasAuthor reports whether authorID is already associated with the record.
func (r *ChunkRecord) HasAuthor(authorID string) bool {
	for _, id := range r.AuthorIDs {
		if id == authorID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate store state.
func (r ChunkRecord) Clone() ChunkRecord {
	out := ChunkRecord{Text: r.Text}
	if r.Vector != nil {
		out.Vector = make([]float32, len(r.Vector))
		copy(out.Vector, r.Vector)
	}
	if r.AuthorIDs != nil {
		out.AuthorIDs = make([]string, len(r.AuthorIDs))
		copy(out.AuthorIDs, r.AuthorIDs)
	}
	return out
}

// QueryMatch is one ranked chunk for a query. ID is the relational row id and
// is zero for records served from the flat-file store.
type QueryMatch struct {
	ID         int64    `json:"id,omitempty"`
	Text       string   `json:"text"`
	AuthorIDs  []string `json:"author_ids"`
	Similarity float64  `json:"similarity"`
}

// AggregatedResult is the best match for a single author.
type AggregatedResult struct {
	AuthorID   string  `json:"author_id"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
}

// StoreStats summarizes the contents of a record store.
type StoreStats struct {
	Chunks            int      `json:"chunks"`
	UniqueAuthors     int      `json:"unique_authors"`
	AvgAuthors        float64  `json:"avg_authors_per_chunk"`
	MultiAuthorChunks []string `json:"multi_author_chunks,omitempty"`
}
