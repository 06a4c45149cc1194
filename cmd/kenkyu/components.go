package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/config"
	"github.com/hyperjump/kenkyu/internal/embedding"
	"github.com/hyperjump/kenkyu/internal/explain"
	"github.com/hyperjump/kenkyu/internal/gemini"
	"github.com/hyperjump/kenkyu/internal/ingest"
	"github.com/hyperjump/kenkyu/internal/search"
	"github.com/hyperjump/kenkyu/internal/storage"
	"github.com/hyperjump/kenkyu/internal/store"
	"github.com/hyperjump/kenkyu/internal/vector"
)

// needs selects which optional components a command uses.
type needs uint8

const (
	// needStore loads the record store even on relational backends.
	needStore needs = 1 << iota
	// needEmbedder builds the provider, the query service and the pipeline.
	needEmbedder
)

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Table    storage.Table
	Store    *store.RecordStore
	Index    vector.Index
	Embedder embedding.Embedder
	Service  *search.Service
	Pipeline *ingest.Pipeline
}

// Close releases the backend and the provider. The ANN index owns the table once built.
func (c *Components) Close() {
	switch {
	case c.Index != nil && c.Index.Type() != string(vector.IndexTypeScan):
		_ = c.Index.Close()
	case c.Table != nil:
		_ = c.Table.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// DatabaseType names the backend as reported by /health.
func databaseType(backend string) string {
	switch backend {
	case storage.BackendSQLite:
		return "sqlite"
	case storage.BackendPostgres:
		return "postgres_pgvector"
	default:
		return "flat_file"
	}
}

// isFileBackend reports whether backend keeps records in the JSON snapshot.
func isFileBackend(backend string) bool {
	return vector.ForBackend(backend) == vector.IndexTypeScan
}

func openTable(ctx context.Context, cfg *config.Config, backend string) (storage.Table, error) {
	return storage.Open(ctx, storage.Options{
		Backend:     backend,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		Dimensions:  cfg.Embedding.Dimensions,
	})
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	return embedding.NewEmbedder(embedding.Options{
		Provider:          cfg.Embedding.Provider,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		BaseURL:           cfg.Embedding.BaseURL,
		APIKey:            cfg.Embedding.APIKey,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Burst:             cfg.Embedding.Burst,
	})
}

func newExplainer(cfg *config.Config) (explain.Explainer, error) {
	switch cfg.Explain.Provider {
	case embedding.ProviderGemini:
		if cfg.Embedding.APIKey == "" {
			return nil, fmt.Errorf("gemini explanations require an API key (set GOOGLE_API_KEY)")
		}
		client := gemini.NewClient(gemini.Config{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Timeout: cfg.Embedding.Timeout,
		})
		return explain.NewGeminiExplainer(client, cfg.Explain.Model), nil
	case "static", embedding.ProviderMock:
		text := cfg.Explain.StaticText
		if text == "" {
			text = explain.UnavailableMessage
		}
		return explain.Static(text), nil
	default:
		return nil, fmt.Errorf("unknown explain provider: %s (supported: gemini, static)", cfg.Explain.Provider)
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, n needs) (*Components, error) {
	c := &Components{Config: cfg}
	backend := cfg.Storage.Backend

	var persist store.Persistence
	if isFileBackend(backend) {
		persist = store.NewFileSnapshot(cfg.Storage.SnapshotPath)
	} else {
		table, err := openTable(ctx, cfg, backend)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s backend: %w", backend, err)
		}
		c.Table = table
		persist = storage.NewSnapshot(table, cfg.Embedding.Timeout)
	}

	if isFileBackend(backend) || n&needStore != 0 {
		s, err := store.Open(persist, store.WithLogger(logger))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to load record store: %w", err)
		}
		c.Store = s
	}

	idx, err := vector.NewIndex(vector.ForBackend(backend), c.Store, c.Table)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}
	c.Index = idx
	logger.Debug("index initialized", zap.String("type", idx.Type()), zap.String("backend", backend))

	if n&needEmbedder == 0 {
		return c, nil
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = emb

	explainer, err := newExplainer(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Service = search.NewService(
		embedding.NewCachedEmbedder(emb, cfg.Embedding.CacheSize),
		idx,
		&cfg.Search,
		search.WithLogger(logger),
		search.WithExplainer(explainer, cfg.Explain.MaxTexts),
		search.WithDatabaseType(databaseType(backend)),
	)
	if c.Store != nil {
		c.Pipeline = ingest.NewPipeline(c.Store, emb, ingest.WithLogger(logger))
	}
	return c, nil
}

// diskPaths lists the local files that hold the configured backend.
func diskPaths(cfg *config.Config) []string {
	switch cfg.Storage.Backend {
	case storage.BackendSQLite:
		return []string{cfg.Storage.SQLitePath}
	case storage.BackendPostgres:
		return nil
	default:
		return []string{cfg.Storage.SnapshotPath}
	}
}
