package models

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query      string             `json:"query"`
	Results    []AggregatedResult `json:"results"`
	TotalFound int                `json:"total_found"`
	QueryTime  int64              `json:"query_time_ms"`
}

// ExplainRequest is the body of POST /explain_match.
type ExplainRequest struct {
	Query    string `json:"query"`
	AuthorID string `json:"author_id"`
}

// ExplainResponse carries the explanation text verbatim.
type ExplainResponse struct {
	Explanation string `json:"explanation"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	DatabaseEntries int64  `json:"database_entries"`
	DatabaseType    string `json:"database_type"`
	Error           string `json:"error,omitempty"`
}
