package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/embedding"
	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/store"
)

// progressEvery is how often Run logs progress.
const progressEvery = 10

// Report counts what a run did.
type Report struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Linked    int `json:"linked"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Pipeline feeds documents into a record store, embedding only novel text.
type Pipeline struct {
	store    *store.RecordStore
	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline writing to s.
func NewPipeline(s *store.RecordStore, embedder embedding.Embedder, opts ...Option) *Pipeline {
	p := &Pipeline{store: s, embedder: embedder, logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AddText upserts a single text for authorID with a document-mode embedding.
func (p *Pipeline) AddText(ctx context.Context, text, authorID string) (store.UpsertResult, error) {
	if text == "" || authorID == "" {
		return store.UpsertResult{Outcome: store.OutcomeFailed, Index: -1},
			fmt.Errorf("%w: text and author id are required", models.ErrMalformedInput)
	}
	return p.store.Upsert(ctx, text, authorID, embedding.DocumentFunc(p.embedder))
}

// Run ingests docs in order. Embedding failures and malformed items are logged and
// counted, and the run continues. Persistence failures and cancellation stop the run.
func (p *Pipeline) Run(ctx context.Context, docs []models.AuthorDocument) (Report, error) {
	var rep Report
	p.logger.Info("ingestion started", zap.Int("documents", len(docs)))
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, err := p.AddText(ctx, NormalizeText(d.Paper), d.AuthorID)
		rep.Processed++
		switch {
		case err == nil:
		case errors.Is(err, models.ErrProvider), errors.Is(err, models.ErrDimensionMismatch),
			errors.Is(err, models.ErrMalformedInput):
			rep.Failed++
			p.logger.Warn("skipping document",
				zap.String("author_id", d.AuthorID),
				zap.String("title", d.Paper.Title),
				zap.Error(err),
			)
		default:
			rep.Failed++
			return rep, fmt.Errorf("ingest %s: %w", d.AuthorID, err)
		}
		switch res.Outcome {
		case store.OutcomeCreated:
			rep.Created++
		case store.OutcomeLinked:
			rep.Linked++
		case store.OutcomeUnchanged:
			rep.Unchanged++
		}
		if rep.Processed%progressEvery == 0 {
			p.logger.Info("ingestion progress", zap.Int("processed", rep.Processed), zap.Int("total", len(docs)))
		}
	}
	p.logger.Info("ingestion finished",
		zap.Int("processed", rep.Processed),
		zap.Int("created", rep.Created),
		zap.Int("linked", rep.Linked),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("failed", rep.Failed),
		zap.Int("chunks", p.store.Len()),
	)
	return rep, nil
}

// RunFile loads an author-abstracts file and ingests it.
func (p *Pipeline) RunFile(ctx context.Context, path string) (Report, error) {
	in, err := LoadAuthorAbstracts(path)
	if err != nil {
		return Report{}, err
	}
	p.logger.Info("loaded author abstracts", zap.String("path", path), zap.Int("authors", len(in.AuthorAbstracts)))
	return p.Run(ctx, Documents(in))
}
