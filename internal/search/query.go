package search

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kenkyu/internal/models"
)

// ValidateQuery trims the query and rejects empty input.
func ValidateQuery(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", fmt.Errorf("%w: query is required", models.ErrMalformedInput)
	}
	return q, nil
}

// ValidateExplain checks both explain fields.
func ValidateExplain(req models.ExplainRequest) (models.ExplainRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.AuthorID = strings.TrimSpace(req.AuthorID)
	if req.Query == "" || req.AuthorID == "" {
		return req, fmt.Errorf("%w: query and author_id are required", models.ErrMalformedInput)
	}
	return req, nil
}
