// Package ingest turns per-author paper lists into deduplicated chunk records.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/hyperjump/kenkyu/internal/models"
)

// NormalizeText builds the stored text for a paper.
func NormalizeText(p models.Paper) string {
	return fmt.Sprintf("Title: %s\nAbstract: %s", p.Title, p.Abstract)
}

// LoadAuthorAbstracts reads an author-abstracts JSON file. A file without an
// author_abstracts object is malformed input.
func LoadAuthorAbstracts(path string) (*models.AuthorAbstracts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var in models.AuthorAbstracts
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", models.ErrMalformedInput, path, err)
	}
	if in.AuthorAbstracts == nil {
		return nil, fmt.Errorf("%w: no author_abstracts found in %s", models.ErrMalformedInput, path)
	}
	return &in, nil
}

// Documents flattens the input into (author, paper) pairs. Authors are visited in
// sorted id order; papers keep their file order.
func Documents(in *models.AuthorAbstracts) []models.AuthorDocument {
	ids := make([]string, 0, len(in.AuthorAbstracts))
	for id := range in.AuthorAbstracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var docs []models.AuthorDocument
	for _, id := range ids {
		for _, p := range in.AuthorAbstracts[id] {
			docs = append(docs, models.AuthorDocument{AuthorID: id, Paper: p})
		}
	}
	return docs
}
