// Package storage provides the relational substrate: a table of chunk records with
// a server-side similarity match, backed by SQLite or PostgreSQL with pgvector.
package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kenkyu/internal/models"
)

// Backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Table is the relational embeddings table.
type Table interface {
	// Count returns the number of rows.
	Count(ctx context.Context) (int64, error)
	// InsertBatch inserts records as one unit: all rows or none.
	InsertBatch(ctx context.Context, records []models.ChunkRecord) error
	// Insert inserts a single record.
	Insert(ctx context.Context, record models.ChunkRecord) error
	// Match returns rows with 1 - cosine_distance(embedding, query) > threshold,
	// ordered by similarity descending, at most count rows (count <= 0 means all).
	Match(ctx context.Context, query []float32, threshold float64, count int) ([]models.QueryMatch, error)
	// TextsByAuthor returns texts whose author_ids contain authorID, in row order.
	TextsByAuthor(ctx context.Context, authorID string, limit int) ([]string, error)
	// All returns every row in id order.
	All(ctx context.Context) ([]models.ChunkRecord, error)
	// ReplaceAll swaps the table contents for records in one transaction.
	ReplaceAll(ctx context.Context, records []models.ChunkRecord) error
	// Type names the backend for health reporting.
	Type() string
	Close() error
}

// Options configures Open.
type Options struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
	Dimensions  int
}

// Open connects to the configured relational backend.
func Open(ctx context.Context, opts Options) (Table, error) {
	switch opts.Backend {
	case BackendSQLite:
		return NewSQLiteTable(opts.SQLitePath)
	case BackendPostgres:
		return NewPostgresTable(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported relational backend: %q", opts.Backend)
	}
}
