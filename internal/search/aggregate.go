// Package search ranks authors for a text query and explains individual matches.
package search

import (
	"sort"

	"github.com/hyperjump/kenkyu/internal/models"
)

// DefaultMaxResults is the top-K applied when no positive limit is given.
const DefaultMaxResults = 20

// Aggregate collapses chunk matches into one result per author. Each author keeps the
// highest similarity seen (the first seen wins ties) and the text of that chunk.
// Results are sorted by similarity descending and truncated to k.
func Aggregate(matches []models.QueryMatch, k int) []models.AggregatedResult {
	if k <= 0 {
		k = DefaultMaxResults
	}
	best := make(map[string]int)
	var results []models.AggregatedResult
	for _, m := range matches {
		for _, authorID := range m.AuthorIDs {
			i, ok := best[authorID]
			if !ok {
				best[authorID] = len(results)
				results = append(results, models.AggregatedResult{AuthorID: authorID, Similarity: m.Similarity, Text: m.Text})
				continue
			}
			if m.Similarity > results[i].Similarity {
				results[i].Similarity = m.Similarity
				results[i].Text = m.Text
			}
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
