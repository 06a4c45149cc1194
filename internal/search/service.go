package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/config"
	"github.com/hyperjump/kenkyu/internal/embedding"
	"github.com/hyperjump/kenkyu/internal/explain"
	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/vector"
	"github.com/hyperjump/kenkyu/pkg/utils"
)

// Service answers text queries with ranked authors.
type Service struct {
	embedder     embedding.Embedder
	index        vector.Index
	explainer    explain.Explainer
	config       *config.SearchConfig
	maxTexts     int
	databaseType string
	logger       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithExplainer enables Explain.
func WithExplainer(e explain.Explainer, maxTexts int) Option {
	return func(s *Service) {
		s.explainer = e
		s.maxTexts = maxTexts
	}
}

// WithDatabaseType overrides the name reported by Health.
func WithDatabaseType(name string) Option {
	return func(s *Service) { s.databaseType = name }
}

// NewService creates a query service. The embedder should be query-cached by the caller.
func NewService(embedder embedding.Embedder, index vector.Index, cfg *config.SearchConfig, opts ...Option) *Service {
	s := &Service{
		embedder:     embedder,
		index:        index,
		config:       cfg,
		maxTexts:     5,
		databaseType: index.Type(),
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DatabaseType names the configured backend.
func (s *Service) DatabaseType() string { return s.databaseType }

// candidateLimit is the match count for the delegated backend; the scan is unbounded.
func (s *Service) candidateLimit() int {
	if s.index.Type() == string(vector.IndexTypeScan) {
		return 0
	}
	return s.config.MatchCount
}

// Search embeds the query, ranks chunks above the threshold, and aggregates per author.
func (s *Service) Search(ctx context.Context, raw string) (*models.SearchResponse, error) {
	start := time.Now()
	query, err := ValidateQuery(raw)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, query, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding: %v", models.ErrProvider, err)
	}

	matches, err := s.index.Search(ctx, vec, vector.SearchOptions{
		Threshold: s.config.MatchThreshold,
		Limit:     s.candidateLimit(),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index.Type(), err)
	}

	results := Aggregate(matches, s.config.MaxResults)
	for i := range results {
		results[i].Text = utils.Truncate(results[i].Text, s.config.SnippetLength)
	}
	if results == nil {
		results = []models.AggregatedResult{}
	}

	s.logger.Debug("search",
		zap.String("query", query),
		zap.Int("chunks", len(matches)),
		zap.Int("authors", len(results)),
		zap.Duration("took", time.Since(start)),
	)
	return &models.SearchResponse{
		Query:      query,
		Results:    results,
		TotalFound: len(results),
		QueryTime:  time.Since(start).Milliseconds(),
	}, nil
}

// Explain returns the explainer's text for why authorID matches query. An author with
// no stored texts gets explain.NoTextsFallback without calling the explainer.
func (s *Service) Explain(ctx context.Context, req models.ExplainRequest) (string, error) {
	req, err := ValidateExplain(req)
	if err != nil {
		return "", err
	}
	if s.explainer == nil {
		return "", fmt.Errorf("%w: explanations are not configured", models.ErrProvider)
	}
	texts, err := s.index.AuthorTexts(ctx, req.AuthorID, s.maxTexts)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return explain.NoTextsFallback, nil
	}
	out, err := s.explainer.Explain(ctx, req.Query, texts)
	if err != nil {
		s.logger.Warn("explanation failed", zap.String("author_id", req.AuthorID), zap.Error(err))
		return "", fmt.Errorf("%w: explain: %v", models.ErrProvider, err)
	}
	return out, nil
}

// Health reports the entry count. A failing count marks the service unhealthy.
func (s *Service) Health(ctx context.Context) models.HealthResponse {
	n, err := s.index.Count(ctx)
	if err != nil {
		return models.HealthResponse{Status: "unhealthy", DatabaseType: s.databaseType, Error: err.Error()}
	}
	return models.HealthResponse{Status: "healthy", DatabaseEntries: n, DatabaseType: s.databaseType}
}
